package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repokit/data/db/dialect"
	"repokit/data/orm"
	"repokit/errors"
)

func newTestCompiler(t *testing.T, dialectName string) *compiler {
	t.Helper()
	meta, err := orm.ParseModel(user{}, "users",
		orm.AssociationMeta{Name: "Posts", Kind: orm.AssociationHasMany})
	require.NoError(t, err)
	return &compiler{table: "users", pk: "id", meta: meta, dialect: dialect.New(dialectName)}
}

// TestCompileWhere_AndOr 测试同组条件按 or 标记以 AND / OR 连接
func TestCompileWhere_AndOr(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	filters := []Filter{Equal{Field: "name", Value: "ann"}, Where("age", ">", 18)}

	cond, err := c.compileWhere(NewQuery().WhereConditions(filters, false))
	require.NoError(t, err)
	assert.Equal(t, "(name = ? AND age > ?) AND users.deleted_at IS NULL", cond.Expr)
	assert.Equal(t, []any{"ann", 18}, cond.Args)

	cond, err = c.compileWhere(NewQuery().WhereConditions(filters, true))
	require.NoError(t, err)
	assert.Equal(t, "(name = ? OR age > ?) AND users.deleted_at IS NULL", cond.Expr)
}

// TestCompileWhere_Attach 测试 Where 以 AND、OrWhere 以 OR 挂接
func TestCompileWhere_Attach(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	q := NewQuery().WithTrashed().
		Where(Equal{Field: "name", Value: "ann"}).
		OrWhere(Equal{Field: "email", Value: "a@x"}, Equal{Field: "age", Value: 3}).
		Where(Null{Field: "email", Not: true})

	cond, err := c.compileWhere(q)
	require.NoError(t, err)
	assert.Equal(t, "name = ? OR (email = ? AND age = ?) AND email IS NOT NULL", cond.Expr)
	assert.Equal(t, []any{"ann", "a@x", 3}, cond.Args)
}

// TestCompileWhere_Grouped 测试含 OR 的条件在追加主键等条件前整体加括号
func TestCompileWhere_Grouped(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	q := NewQuery().
		Where(Equal{Field: "name", Value: "user01"}).
		OrWhere(Equal{Field: "age", Value: 2})

	cond, err := c.compileWhere(q.grouped().Where(Equal{Field: "users.id", Value: 3}))
	require.NoError(t, err)
	assert.Equal(t, "((name = ? OR age = ?) AND users.id = ?) AND users.deleted_at IS NULL", cond.Expr)
	assert.Equal(t, []any{"user01", 2, 3}, cond.Args)

	// 仅含 AND 的条件保持平铺
	flat := NewQuery().Where(Equal{Field: "name", Value: "ann"}).Where(Where("age", ">", 1))
	assert.Equal(t, flat.wheres, flat.grouped().wheres)

	cond, err = c.compileWhere(q.grouped().grouped())
	require.NoError(t, err)
	assert.Equal(t, "(name = ? OR age = ?) AND users.deleted_at IS NULL", cond.Expr)
}

// TestCompileWhere_Trashed 测试软删除范围
func TestCompileWhere_Trashed(t *testing.T) {
	c := newTestCompiler(t, "sqlite")

	cond, err := c.compileWhere(NewQuery())
	require.NoError(t, err)
	assert.Equal(t, "users.deleted_at IS NULL", cond.Expr)

	cond, err = c.compileWhere(NewQuery().OnlyTrashed())
	require.NoError(t, err)
	assert.Equal(t, "users.deleted_at IS NOT NULL", cond.Expr)

	cond, err = c.compileWhere(NewQuery().WithTrashed())
	require.NoError(t, err)
	assert.Empty(t, cond.Expr)
}

// TestCompileFilter_Variants 测试各类条件的编译结果
func TestCompileFilter_Variants(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	cases := []struct {
		name   string
		filter Filter
		expr   string
		args   []any
	}{
		{"nil equal", Equal{Field: "email", Value: nil}, "email IS NULL", nil},
		{"not equal nil", Where("email", "<>", nil), "email IS NOT NULL", nil},
		{"in", InList{Field: "id", Values: []any{1, 2}}, "id IN (?, ?)", []any{1, 2}},
		{"not in", InList{Field: "id", Values: []any{3}, Not: true}, "id NOT IN (?)", []any{3}},
		{"empty in", InList{Field: "id"}, "1 = 0", nil},
		{"empty not in", InList{Field: "id", Not: true}, "1 = 1", nil},
		{"between", Between{Field: "age", Low: 1, High: 9}, "age BETWEEN ? AND ?", []any{1, 9}},
		{"not between", Between{Field: "age", Low: 1, High: 9, Not: true}, "age NOT BETWEEN ? AND ?", []any{1, 9}},
		{"like", Contains("name", "an"), "name LIKE ?", []any{"%an%"}},
		{"ilike", Where("name", "ILIKE", "a%"), "LOWER(name) LIKE LOWER(?)", []any{"a%"}},
		{"regexp", Where("name", "REGEXP", "^a"), "name REGEXP ?", []any{"^a"}},
		{"not regexp", Where("name", "not regexp", "^a"), "name NOT REGEXP ?", []any{"^a"}},
		{"raw", Raw{Expr: "age % 2 = ?", Args: []any{0}}, "(age % 2 = ?)", []any{0}},
		{"single group", And(Equal{Field: "age", Value: 1}), "age = ?", []any{1}},
		{"or group", Or(Equal{Field: "age", Value: 1}, Equal{Field: "age", Value: 2}), "(age = ? OR age = ?)", []any{1, 2}},
		{"predicate", Predicate(func(q *Query) *Query {
			return q.Where(Equal{Field: "name", Value: "a"}).OrWhere(Equal{Field: "name", Value: "b"})
		}), "(name = ? OR name = ?)", []any{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expr, args, err := c.compileFilter(tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.expr, expr)
			assert.Equal(t, tc.args, args)
		})
	}
}

// TestCompileFilter_Postgres 测试 Postgres 的 ILIKE 与正则
func TestCompileFilter_Postgres(t *testing.T) {
	c := newTestCompiler(t, "postgres")

	expr, _, err := c.compileFilter(Where("name", "ilike", "%a%"))
	require.NoError(t, err)
	assert.Equal(t, "name ILIKE ?", expr)

	expr, _, err = c.compileFilter(Where("name", "regexp", "^a"))
	require.NoError(t, err)
	assert.Equal(t, "name ~ ?", expr)
}

// TestCompileFilter_Malformed 测试非法描述返回 ErrCodeInvalidInput
func TestCompileFilter_Malformed(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	bad := []Filter{
		Where("name", "~~", "x"),
		Where("name"),
		Equal{Field: "name; DROP TABLE users", Value: 1},
		InList{Field: "1id", Values: []any{1}},
	}
	for _, f := range bad {
		_, _, err := c.compileFilter(f)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidInput(err), "filter %#v", f)
	}

	_, err := ParseFilterTuple([]any{"name"})
	assert.True(t, errors.IsInvalidInput(err))
	_, err = ParseFilterTuple([]any{"name", "between", 1})
	assert.True(t, errors.IsInvalidInput(err))

	f, err := ParseFilterTuple([]any{"age", ">=", 3})
	require.NoError(t, err)
	assert.Equal(t, Compare{Field: "age", Op: ">=", Value: 3}, f)
}

// TestCompileRead_Joins 测试连接元组补全缺省槽位
func TestCompileRead_Joins(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	q := NewQuery().JoinTuples(
		[]string{"posts", "user_id"},
		[]string{"inner", "users", "id", "profiles", "user_id"},
		[]string{"right", "teams", "id", "team_id"},
	)

	opts, err := c.compileRead(q)
	require.NoError(t, err)
	assert.Equal(t, []orm.Join{
		{Kind: "LEFT", Table: "posts", On: "posts.user_id = users.id"},
		{Kind: "INNER", Table: "profiles", On: "profiles.user_id = users.id"},
		{Kind: "RIGHT", Table: "teams", On: "teams.id = users.team_id"},
	}, opts.Joins)
	assert.Equal(t, []string{"users.*"}, opts.Select)
}

// TestCompileRead_MalformedJoins 测试非法连接描述
func TestCompileRead_MalformedJoins(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	for _, q := range []*Query{
		NewQuery().JoinTuples([]string{"posts"}),
		NewQuery().JoinTuples([]string{"outer", "posts", "user_id"}),
		NewQuery().Join(JoinSpec{SecondaryTable: "posts"}),
		NewQuery().Join(JoinSpec{SecondaryTable: "posts p", SecondaryKey: "user_id"}),
	} {
		_, err := c.compileRead(q)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidInput(err))
	}
}

// TestCompileRead_Relations 测试 Has / DoesntHave / WhereHas / WithCount
func TestCompileRead_Relations(t *testing.T) {
	c := newTestCompiler(t, "sqlite")
	sub := "SELECT 1 FROM posts WHERE posts.user_id = users.id"

	cases := []struct {
		name string
		q    *Query
		expr string
		args []any
	}{
		{"has", NewQuery().Has("Posts"), "EXISTS (" + sub + ")", nil},
		{"doesnt have", NewQuery().DoesntHave("posts"), "NOT EXISTS (" + sub + ")", nil},
		{"has count", NewQuery().Has("Posts", ">", 2),
			"(SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id) > ?", []any{2}},
		{"where has", NewQuery().WhereHas("Posts", func(q *Query) *Query {
			return q.Where(Contains("title", "go"))
		}), "EXISTS (" + sub + " AND (title LIKE ?))", []any{"%go%"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cond, err := c.compileWhere(tc.q.WithTrashed())
			require.NoError(t, err)
			assert.Equal(t, tc.expr, cond.Expr)
			assert.Equal(t, tc.args, cond.Args)
		})
	}

	opts, err := c.compileRead(NewQuery().WithCount("Posts"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"users.*",
		"(SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id) AS posts_count",
	}, opts.Select)

	for _, q := range []*Query{
		NewQuery().Has("ghost"),
		NewQuery().Has("Posts", "like", 1),
		NewQuery().Has("Posts", ">"),
		NewQuery().WithCount("ghost"),
		NewQuery().With("ghost"),
	} {
		_, err := c.compileRead(q)
		assert.True(t, errors.IsInvalidInput(err))
	}
}

// TestCompileRead_OrderSelect 测试排序、随机排序与返回列校验
func TestCompileRead_OrderSelect(t *testing.T) {
	c := newTestCompiler(t, "mysql")
	opts, err := c.compileRead(NewQuery().
		Select("id", "name AS label").
		OrderBy("name", "desc").
		InRandomOrder().
		GroupBy("name").
		Skip(5).Take(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name AS label"}, opts.Select)
	assert.Equal(t, []orm.OrderBy{{Column: "name", Desc: true}, {Column: "RAND()", Raw: true}}, opts.OrderBy)
	assert.Equal(t, []string{"name"}, opts.GroupBy)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 5, opts.Offset)

	_, err = c.compileRead(NewQuery().OrderBy("name", "sideways"))
	assert.True(t, errors.IsInvalidInput(err))
	_, err = c.compileRead(NewQuery().Select("name; --"))
	assert.True(t, errors.IsInvalidInput(err))
}

// TestQuery_Immutable 测试修饰方法不改变接收者
func TestQuery_Immutable(t *testing.T) {
	base := NewQuery().Where(Equal{Field: "name", Value: "ann"})
	derived := base.OrderBy("name").Take(3).With("Posts").OnlyTrashed()

	assert.Len(t, base.wheres, 1)
	assert.Empty(t, base.orders)
	assert.Zero(t, base.limit)
	assert.Empty(t, base.with)
	assert.Equal(t, withoutTrashed, base.trashed)
	assert.Equal(t, onlyTrashed, derived.trashed)

	var nilQuery *Query
	assert.Len(t, nilQuery.Where(Equal{Field: "a", Value: 1}).wheres, 1)
}
