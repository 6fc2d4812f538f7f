package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	core "repokit/data/db"
	"repokit/data/db/dialect"
)

type insertBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table     string
	columns   []string
	rows      [][]any
	returning []string
}

func (b *insertBuilder) Columns(cols ...string) IInsertBuilder {
	b.columns = cols
	return b
}

func (b *insertBuilder) Values(vals ...any) IInsertBuilder {
	if len(vals) > 0 {
		b.rows = append(b.rows, vals)
	}
	return b
}

func (b *insertBuilder) Returning(cols ...string) IInsertBuilder {
	b.returning = cols
	return b
}

func (b *insertBuilder) Build() (string, []any, error) {
	if err := checkIdentifier("table", b.table); err != nil {
		return "", nil, err
	}
	if len(b.rows) == 0 && len(b.columns) > 0 {
		return "", nil, fmt.Errorf("%w: insert into %s without values", ErrIncompleteStatement, b.table)
	}

	var sb strings.Builder
	args := make([]any, 0, len(b.rows)*len(b.columns))

	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.dialect.QuoteIdentifier(b.table))

	if len(b.columns) == 0 {
		// 全部列使用默认值
		sb.WriteString(" DEFAULT VALUES")
	} else {
		quoted, err := b.quoteAll(b.columns)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" (")
		sb.WriteString(strings.Join(quoted, ", "))
		sb.WriteString(") VALUES ")

		rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(b.columns)), ", ") + ")"
		for i, row := range b.rows {
			if len(row) != len(b.columns) {
				return "", nil, fmt.Errorf("%w: row %d has %d values for %d columns",
					ErrIncompleteStatement, i, len(row), len(b.columns))
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(rowPlaceholder)
			args = append(args, row...)
		}
	}

	if len(b.returning) > 0 && b.dialect.SupportsReturning() {
		quoted, err := b.quoteAll(b.returning)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" RETURNING ")
		sb.WriteString(strings.Join(quoted, ", "))
	}

	return sb.String(), args, nil
}

func (b *insertBuilder) quoteAll(cols []string) ([]string, error) {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		if err := checkIdentifier("column", col); err != nil {
			return nil, err
		}
		quoted[i] = b.dialect.QuoteIdentifier(col)
	}
	return quoted, nil
}

func (b *insertBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.db.Exec(ctx, q, args...)
}

// QueryRow 执行带 RETURNING 的插入并返回结果行
func (b *insertBuilder) QueryRow(ctx context.Context) core.IRow {
	q, args, err := b.Build()
	if err != nil {
		return errRow{err: err}
	}
	return b.db.QueryRow(ctx, q, args...)
}
