package sql

import (
	"fmt"
	"strings"
)

// IsSafeIdentifier 判断标识符是否为安全的数据库标识符。
//
// 允许 foo、bar_1 以及 schema.table、table.column 等带点形式；
// 每段首字符为 [A-Za-z_]，其余为 [A-Za-z0-9_]。
func IsSafeIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			if i == 0 && !letter {
				return false
			}
			if i > 0 && !letter && !(ch >= '0' && ch <= '9') {
				return false
			}
		}
	}
	return true
}

func checkIdentifier(kind, name string) error {
	if !IsSafeIdentifier(name) {
		return fmt.Errorf("%w: %s %q", ErrUnsafeIdentifier, kind, name)
	}
	return nil
}
