// Command repoquery 对数据库表执行仓储查询：列出列、分页、表格协议查询与条件查找。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
