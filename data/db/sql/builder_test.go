package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "repokit/data/db"
	"repokit/data/db/basic"
)

// dialectOnly 只提供方言名，用于纯构建测试
type dialectOnly struct {
	core.IDatabase
	name string
}

func (d dialectOnly) GetDialectName() string { return d.name }

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// TestSelect_Golden 测试带连接、分组 OR、分页的 SELECT
func TestSelect_Golden(t *testing.T) {
	s := New(dialectOnly{name: "sqlite"})
	q, args, err := s.Select("users.*", "(SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id) AS posts_count").
		From("users").
		Join("left", "profiles", "profiles.user_id = users.id").
		Where("users.name LIKE ?", "%a%").
		Or("users.email LIKE ?", "%a%").
		Where("users.deleted_at IS NULL").
		GroupBy("users.id").
		OrderBy("users.name ASC", "users.id DESC").
		Limit(10).
		Offset(20).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []any{"%a%", "%a%", 10, 20}, args)
	newGolden(t).Assert(t, "select_join_sqlite", []byte(q))
}

// TestInsert_Golden 测试 Postgres RETURNING
func TestInsert_Golden(t *testing.T) {
	s := New(dialectOnly{name: "postgres"})
	q, args, err := s.InsertInto("users").Columns("name", "email").Values("ann", "a@x").Returning("id").Build()
	require.NoError(t, err)
	assert.Equal(t, []any{"ann", "a@x"}, args)
	newGolden(t).Assert(t, "insert_returning_postgres", []byte(q))

	// 非 Postgres 忽略 RETURNING
	q, _, err = New(dialectOnly{name: "sqlite"}).InsertInto("users").Columns("name").Values("ann").Returning("id").Build()
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES (?)`, q)
}

// TestUpdate_Golden 测试 SetMap 排序与表达式参数顺序
func TestUpdate_Golden(t *testing.T) {
	s := New(dialectOnly{name: "sqlite"})
	q, args, err := s.Update("users").
		SetMap(map[string]any{"name": "b", "age": 3}).
		SetExpr("version = version + ?", 1).
		Where("id = ?", 7).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []any{3, "b", 1, 7}, args)
	newGolden(t).Assert(t, "update_sqlite", []byte(q))
}

func TestSelect_OffsetWithoutLimit(t *testing.T) {
	q, args, err := New(dialectOnly{name: "sqlite"}).Select().From("users").Offset(5).Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users LIMIT -1 OFFSET ?", q)
	assert.Equal(t, []any{5}, args)

	q, _, err = New(dialectOnly{name: "postgres"}).Select().From("users").Offset(5).Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users OFFSET ?", q)
}

func TestDelete_Limit(t *testing.T) {
	q, args, err := New(dialectOnly{name: "mysql"}).DeleteFrom("users").Where("id = ?", 1).Limit(1).Build()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE id = ? LIMIT ?", q)
	assert.Equal(t, []any{1, 1}, args)

	q, _, err = New(dialectOnly{name: "postgres"}).DeleteFrom("users").Limit(1).Build()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users"`, q)
}

func TestBuild_Errors(t *testing.T) {
	s := New(dialectOnly{name: "sqlite"})

	_, _, err := s.Select().From("users; DROP TABLE x").Build()
	assert.True(t, errors.Is(err, ErrUnsafeIdentifier))

	_, _, err = s.InsertInto("users").Columns("bad col").Values(1).Build()
	assert.True(t, errors.Is(err, ErrUnsafeIdentifier))

	_, _, err = s.InsertInto("users").Columns("a", "b").Values(1).Build()
	assert.True(t, errors.Is(err, ErrIncompleteStatement))

	_, _, err = s.Update("users").Build()
	assert.True(t, errors.Is(err, ErrIncompleteStatement))

	q, _, err := s.InsertInto("users").Build()
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" DEFAULT VALUES`, q)

	row := s.Select().From("1bad").QueryRow(context.Background())
	assert.True(t, errors.Is(row.Scan(), ErrUnsafeIdentifier))
}

// TestInsert_ReturningExec 测试 Postgres 下通过 QueryRow 取回主键
func TestInsert_ReturningExec(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	s := New(basic.Open(raw, "postgres"))
	mock.ExpectQuery(`INSERT INTO "users" \("name"\) VALUES \(\$1\) RETURNING "id"`).
		WithArgs("ann").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	var id int64
	require.NoError(t, s.InsertInto("users").Columns("name").Values("ann").Returning("id").QueryRow(context.Background()).Scan(&id))
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
