// Package dialect 描述仓储用到的 SQL 方言差异。
package dialect

import (
	"strconv"
	"strings"

	core "repokit/data/db"
)

// Name 标准化的数据库方言名称
type Name string

const (
	NameMySQL    Name = "mysql"
	NameSQLite   Name = "sqlite"
	NamePostgres Name = "postgres"
	NameUnknown  Name = ""
)

// Dialect 表示当前数据库的方言能力
type Dialect struct {
	name Name
}

// New 根据字符串构造方言（大小写不敏感）
func New(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return Dialect{name: NameMySQL}
	case "sqlite", "sqlite3":
		return Dialect{name: NameSQLite}
	case "postgres", "postgresql", "pgx":
		return Dialect{name: NamePostgres}
	default:
		return Dialect{name: NameUnknown}
	}
}

// FromDatabase 从 IDatabase 实例推断方言，未实现 IDialectNameProvider 时返回 Unknown
func FromDatabase(db core.IDatabase) Dialect {
	if db == nil {
		return Dialect{name: NameUnknown}
	}
	if p, ok := db.(core.IDialectNameProvider); ok {
		return New(p.GetDialectName())
	}
	return Dialect{name: NameUnknown}
}

// Name 返回标准化方言名
func (d Dialect) Name() Name {
	return d.name
}

// QuoteIdentifier 按方言为标识符逐段加引号，不校验语法。
//
// MySQL 使用反引号，Postgres/SQLite 使用双引号，Unknown 方言原样返回；
// 段为 * 时保持原样（table.*）。
func (d Dialect) QuoteIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" || p == "*" {
			continue
		}
		switch d.name {
		case NameMySQL:
			parts[i] = "`" + p + "`"
		case NameSQLite, NamePostgres:
			parts[i] = `"` + p + `"`
		}
	}
	return strings.Join(parts, ".")
}

// Rebind 将通用占位符 ? 转换为方言形式。
//
// 仅 Postgres 替换为 $1、$2...；单引号字符串字面量中的 ? 保持不变。
func (d Dialect) Rebind(query string) string {
	if d.name != NamePostgres || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	argIndex := 1
	inLiteral := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(ch)
		case ch == '?' && !inLiteral:
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(argIndex))
			argIndex++
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// Like 生成 LIKE 条件。
//
// 大小写不敏感时 Postgres 使用原生 ILIKE，其余方言使用 LOWER(col) LIKE LOWER(?)。
func (d Dialect) Like(column string, not, caseInsensitive bool) string {
	op := "LIKE"
	if caseInsensitive && d.name == NamePostgres {
		op = "ILIKE"
	}
	if not {
		op = "NOT " + op
	}
	if caseInsensitive && d.name != NamePostgres {
		return "LOWER(" + column + ") " + op + " LOWER(?)"
	}
	return column + " " + op + " ?"
}

// Regexp 生成正则匹配条件：Postgres 使用 ~ / !~，其余使用 REGEXP
func (d Dialect) Regexp(column string, not bool) string {
	if d.name == NamePostgres {
		if not {
			return column + " !~ ?"
		}
		return column + " ~ ?"
	}
	if not {
		return column + " NOT REGEXP ?"
	}
	return column + " REGEXP ?"
}

// RandomFunc 随机排序函数
func (d Dialect) RandomFunc() string {
	if d.name == NameMySQL {
		return "RAND()"
	}
	return "RANDOM()"
}

// SupportsReturning INSERT ... RETURNING 是否可用于取回生成的主键。
//
// Postgres 驱动不支持 LastInsertId，只能依赖 RETURNING。
func (d Dialect) SupportsReturning() bool {
	return d.name == NamePostgres
}

// SupportsDeleteLimit 当前方言是否支持 DELETE ... LIMIT 语法
func (d Dialect) SupportsDeleteLimit() bool {
	switch d.name {
	case NameMySQL, NameSQLite:
		return true
	default:
		return false
	}
}

// ColumnListingQuery 返回列出表字段的查询语句与参数，结果集第一列为字段名。
//
// ok 为 false 表示方言未知，无法内省。
func (d Dialect) ColumnListingQuery(table string) (query string, args []any, ok bool) {
	schema, name := "", table
	if idx := strings.LastIndex(table, "."); idx >= 0 {
		schema, name = table[:idx], table[idx+1:]
	}
	switch d.name {
	case NameSQLite:
		return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []any{name}, true
	case NameMySQL:
		if schema != "" {
			return "SELECT COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
				[]any{schema, name}, true
		}
		return "SELECT COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
			[]any{name}, true
	case NamePostgres:
		if schema == "" {
			schema = "public"
		}
		return "SELECT column_name FROM information_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position",
			[]any{schema, name}, true
	default:
		return "", nil, false
	}
}

// IsUniqueViolation 通过错误消息关键字判断唯一键/主键冲突
//
//   - MySQL: "Duplicate entry" (Error 1062)
//   - SQLite: "UNIQUE constraint failed"
//   - Postgres: "duplicate key value violates unique constraint" (23505)
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch d.name {
	case NameMySQL:
		return strings.Contains(msg, "duplicate entry") ||
			strings.Contains(msg, "duplicate key")
	case NameSQLite:
		return strings.Contains(msg, "unique constraint failed")
	default:
		return strings.Contains(msg, "duplicate key") ||
			strings.Contains(msg, "unique constraint")
	}
}
