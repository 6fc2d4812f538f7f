// Package db 定义仓储所依赖的最小数据库抽象。
//
// ORM 适配器只通过 IDatabase 访问存储，便于替换驱动与在测试中注入 sqlmock。
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
)

// IDatabase 通用数据库接口
type IDatabase interface {
	// 查询操作
	Query(ctx context.Context, query string, args ...any) (IRows, error)
	QueryRow(ctx context.Context, query string, args ...any) IRow

	// 执行操作
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// 事务操作
	Begin(ctx context.Context) (ITransaction, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (ITransaction, error)

	// 连接管理
	Ping(ctx context.Context) error
	Close() error

	// 获取原始连接（用于特殊场景）
	Raw() any
}

// IDialectNameProvider 可选接口：提供底层数据库方言名称
//
// 实现方应返回诸如 "mysql"、"sqlite"、"postgres" 等 driver 名，
// 供上层推断方言能力（ILIKE、REGEXP、RETURNING、唯一键错误识别等）。
type IDialectNameProvider interface {
	GetDialectName() string
}

// ITransaction 事务接口
type ITransaction interface {
	IDatabase

	Commit() error
	Rollback() error
}

// IRows 查询结果集接口
type IRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error

	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
}

// IRow 单行结果接口
type IRow interface {
	Scan(dest ...any) error
	Err() error
}

// DBConfig 数据库配置
type DBConfig struct {
	Driver   string // mysql, postgres, sqlite
	Host     string
	Port     int
	Database string // sqlite 下为文件路径或 :memory:
	Username string
	Password string

	// DSN 非空时直接使用，忽略上面的连接字段
	DSN string

	// 连接池配置
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒

	// 其他选项
	Charset   string
	ParseTime bool
	SSLMode   string
}

// DataSourceName 按驱动拼装 DSN
func (c DBConfig) DataSourceName() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch strings.ToLower(c.Driver) {
	case "", "sqlite", "sqlite3":
		if c.Database == "" {
			return "", fmt.Errorf("db: sqlite requires Database")
		}
		return c.Database, nil
	case "mysql":
		port := c.Port
		if port == 0 {
			port = 3306
		}
		charset := c.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t",
			c.Username, c.Password, c.Host, port, c.Database, charset, c.ParseTime), nil
	case "postgres", "postgresql", "pgx":
		port := c.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.Username, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, port),
			Path:   c.Database,
		}
		if c.SSLMode != "" {
			u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("db: unsupported driver %q", c.Driver)
	}
}
