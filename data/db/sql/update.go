package sql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	core "repokit/data/db"
	"repokit/data/db/dialect"
)

type updateBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table     string
	setCols   []string
	setArgs   []any
	exprSet   []string
	exprArgs  []any
	whereExpr []string
	whereArgs []any
}

func (b *updateBuilder) Set(col string, val any) IUpdateBuilder {
	if col == "" {
		return b
	}
	b.setCols = append(b.setCols, col)
	b.setArgs = append(b.setArgs, val)
	return b
}

// SetMap 按列名排序追加，保证生成的语句稳定
func (b *updateBuilder) SetMap(values map[string]any) IUpdateBuilder {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.Set(k, values[k])
	}
	return b
}

func (b *updateBuilder) SetExpr(expr string, args ...any) IUpdateBuilder {
	if expr == "" {
		return b
	}
	b.exprSet = append(b.exprSet, expr)
	b.exprArgs = append(b.exprArgs, args...)
	return b
}

func (b *updateBuilder) Where(cond string, args ...any) IUpdateBuilder {
	if cond != "" {
		b.whereExpr = append(b.whereExpr, cond)
		b.whereArgs = append(b.whereArgs, args...)
	}
	return b
}

func (b *updateBuilder) Build() (string, []any, error) {
	if err := checkIdentifier("table", b.table); err != nil {
		return "", nil, err
	}
	if len(b.setCols) == 0 && len(b.exprSet) == 0 {
		return "", nil, fmt.Errorf("%w: update %s without SET", ErrIncompleteStatement, b.table)
	}

	var sb strings.Builder
	args := make([]any, 0, len(b.setArgs)+len(b.exprArgs)+len(b.whereArgs))

	sb.WriteString("UPDATE ")
	sb.WriteString(b.dialect.QuoteIdentifier(b.table))
	sb.WriteString(" SET ")

	parts := make([]string, 0, len(b.setCols)+len(b.exprSet))
	for i, col := range b.setCols {
		if err := checkIdentifier("column", col); err != nil {
			return "", nil, err
		}
		parts = append(parts, b.dialect.QuoteIdentifier(col)+" = ?")
		args = append(args, b.setArgs[i])
	}
	parts = append(parts, b.exprSet...)
	args = append(args, b.exprArgs...)
	sb.WriteString(strings.Join(parts, ", "))

	if len(b.whereExpr) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.whereExpr, " AND "))
		args = append(args, b.whereArgs...)
	}

	return sb.String(), args, nil
}

func (b *updateBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.db.Exec(ctx, q, args...)
}
