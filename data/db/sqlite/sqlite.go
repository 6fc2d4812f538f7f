// Package sqlite 基于 modernc.org/sqlite（纯 Go）打开 SQLite 数据库。
//
// 额外注册 regexp(pattern, value) 标量函数，使 "col REGEXP ?" 在 SQLite 上可用。
package sqlite

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	msqlite "modernc.org/sqlite"

	core "repokit/data/db"
	"repokit/data/db/basic"
)

const driverName = "sqlite"

var (
	registerOnce sync.Once
	registerErr  error

	patternCache sync.Map // string -> *regexp.Regexp
)

// Open 打开 SQLite 数据库；dsn 为文件路径或 ":memory:"。
//
// 内存库每个连接都是独立的库，因此连接池固定为 1。
func Open(dsn string) (*basic.DB, error) {
	if err := RegisterFunctions(); err != nil {
		return nil, err
	}
	config := core.DBConfig{Driver: driverName, Database: dsn}
	if dsn == ":memory:" {
		config.MaxOpenConns = 1
	}
	return basic.New(config)
}

// RegisterFunctions 注册扩展函数（幂等）
func RegisterFunctions() error {
	registerOnce.Do(func() {
		registerErr = msqlite.RegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
	})
	return registerErr
}

func regexpFunc(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := asString(args[0])
	if !ok {
		return nil, nil
	}
	value, ok := asString(args[1])
	if !ok {
		// NULL REGEXP x 为 NULL，按不匹配处理
		return int64(0), nil
	}

	re, err := compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}
	if re.MatchString(value) {
		return int64(1), nil
	}
	return int64(0), nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func asString(v driver.Value) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	case int64:
		return fmt.Sprint(val), true
	case float64:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}
