package sql

import (
	"context"
	"strings"

	core "repokit/data/db"
	"repokit/data/db/dialect"
)

type joinClause struct {
	kind  string
	table string
	on    string
	args  []any
}

type selectBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	cols    []string
	table   string
	joins   []joinClause
	where   []string
	args    []any
	groupBy []string
	orderBy []string
	limit   int
	offset  int
	locking string
}

func (b *selectBuilder) From(table string) ISelectBuilder {
	b.table = table
	return b
}

// Join 追加连接子句，kind 为 LEFT/RIGHT/INNER，on 中可含占位符
func (b *selectBuilder) Join(kind, table, on string, args ...any) ISelectBuilder {
	if table == "" {
		return b
	}
	b.joins = append(b.joins, joinClause{kind: strings.ToUpper(kind), table: table, on: on, args: args})
	return b
}

func (b *selectBuilder) Where(cond string, args ...any) ISelectBuilder {
	if cond != "" {
		b.where = append(b.where, cond)
		b.args = append(b.args, args...)
	}
	return b
}

func (b *selectBuilder) And(cond string, args ...any) ISelectBuilder {
	return b.Where(cond, args...)
}

// Or 与上一个条件组成 OR 分组
func (b *selectBuilder) Or(cond string, args ...any) ISelectBuilder {
	if cond == "" {
		return b
	}
	if len(b.where) == 0 {
		return b.Where(cond, args...)
	}
	last := b.where[len(b.where)-1]
	b.where[len(b.where)-1] = "(" + last + " OR " + cond + ")"
	b.args = append(b.args, args...)
	return b
}

func (b *selectBuilder) GroupBy(cols ...string) ISelectBuilder {
	b.groupBy = append(b.groupBy, cols...)
	return b
}

func (b *selectBuilder) OrderBy(exprs ...string) ISelectBuilder {
	for _, e := range exprs {
		if e != "" {
			b.orderBy = append(b.orderBy, e)
		}
	}
	return b
}

func (b *selectBuilder) Limit(n int) ISelectBuilder {
	b.limit = n
	return b
}

func (b *selectBuilder) Offset(n int) ISelectBuilder {
	b.offset = n
	return b
}

func (b *selectBuilder) ForUpdate() ISelectBuilder {
	switch b.dialect.Name() {
	case dialect.NameMySQL, dialect.NamePostgres:
		b.locking = " FOR UPDATE"
	}
	return b
}

func (b *selectBuilder) Build() (string, []any, error) {
	if err := checkIdentifier("table", b.table); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	// 参数顺序：JOIN ON → WHERE → LIMIT/OFFSET
	args := make([]any, 0, len(b.args)+2)
	for _, j := range b.joins {
		if err := checkIdentifier("join table", j.table); err != nil {
			return "", nil, err
		}
		sb.WriteString(" ")
		if j.kind != "" {
			sb.WriteString(j.kind)
			sb.WriteString(" ")
		}
		sb.WriteString("JOIN ")
		sb.WriteString(j.table)
		if j.on != "" {
			sb.WriteString(" ON ")
			sb.WriteString(j.on)
		}
		args = append(args, j.args...)
	}
	args = append(args, b.args...)

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	if b.offset > 0 {
		if b.limit <= 0 {
			// MySQL/SQLite 的 OFFSET 必须跟在 LIMIT 之后
			switch b.dialect.Name() {
			case dialect.NameSQLite:
				sb.WriteString(" LIMIT -1")
			case dialect.NameMySQL:
				sb.WriteString(" LIMIT 18446744073709551615")
			}
		}
		sb.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}
	sb.WriteString(b.locking)
	return sb.String(), args, nil
}

func (b *selectBuilder) Query(ctx context.Context) (core.IRows, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.db.Query(ctx, q, args...)
}

func (b *selectBuilder) QueryRow(ctx context.Context) core.IRow {
	q, args, err := b.Build()
	if err != nil {
		return errRow{err: err}
	}
	return b.db.QueryRow(ctx, q, args...)
}
