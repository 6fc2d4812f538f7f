package basic

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	core "repokit/data/db"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(core.DBConfig{Driver: "sqlite", Database: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestDB_QueryAndTx 测试基础查询与事务提交/回滚
func TestDB_QueryAndTx(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	require.NoError(t, db.ExecDDL(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`))

	_, err := db.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "a")
	require.NoError(t, err)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "b")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = tx.Begin(ctx)
	assert.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 1, count)

	rows, err := db.Query(ctx, "SELECT name FROM items WHERE id = ?", 1)
	require.NoError(t, err)
	defer rows.Close()
	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, cols)
	require.True(t, rows.Next())
	var name string
	require.NoError(t, rows.Scan(&name))
	assert.Equal(t, "a", name)
	assert.Equal(t, "sqlite", db.GetDialectName())
}

// TestDB_PostgresRebind 测试 Postgres 方言下占位符重绑定
func TestDB_PostgresRebind(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	db := Open(raw, "postgres")
	mock.ExpectExec(`UPDATE users SET name = \$1 WHERE id = \$2`).
		WithArgs("ann", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := db.Exec(context.Background(), "UPDATE users SET name = ? WHERE id = ?", "ann", 7)
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
