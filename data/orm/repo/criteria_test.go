package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ageAbove struct{ min int }

func (c ageAbove) Kind() CriteriaKind { return "age_above" }

func (c ageAbove) Apply(q *Query, _ IRepositoryContext) *Query {
	return q.Where(Where("age", ">", c.min))
}

func orderByName() ICriteria {
	return NewCriteria("order_by_name", func(q *Query, repo IRepositoryContext) *Query {
		return q.OrderBy(repo.Table() + ".name")
	})
}

// TestCriteriaStack_PushReplacesSameKind 测试同类别条件被替换并移动到末尾
func TestCriteriaStack_PushReplacesSameKind(t *testing.T) {
	s := NewCriteriaStack()
	s.Push(ageAbove{min: 10})
	s.Push(orderByName())
	s.Push(ageAbove{min: 30})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, CriteriaKind("order_by_name"), items[0].Kind())
	assert.Equal(t, ageAbove{min: 30}, items[1])
}

// TestCriteriaStack_PopHasReset 测试弹出、查询与重置
func TestCriteriaStack_PopHasReset(t *testing.T) {
	s := NewCriteriaStack(ageAbove{min: 1}, orderByName())
	assert.True(t, s.Has("age_above"))
	assert.True(t, s.Pop("age_above"))
	assert.False(t, s.Pop("age_above"))
	assert.False(t, s.Has("age_above"))
	assert.Equal(t, 1, s.Len())

	s.Skip(true)
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Skipped())
}

// TestCriteriaStack_ItemsIsCopy 测试 Items 返回副本
func TestCriteriaStack_ItemsIsCopy(t *testing.T) {
	s := NewCriteriaStack(ageAbove{min: 1})
	items := s.Items()
	items[0] = orderByName()
	assert.Equal(t, ageAbove{min: 1}, s.Items()[0])
}

// TestCriteriaStack_SkipIsIdentity 测试跳过时 Apply 原样返回，取消跳过后恢复
func TestCriteriaStack_SkipIsIdentity(t *testing.T) {
	r := setupRepo(t)
	s := NewCriteriaStack(ageAbove{min: 18}, orderByName())
	base := NewQuery().Where(Equal{Field: "name", Value: "ann"})

	s.Skip(true)
	assert.Same(t, base, s.Apply(base, r))

	s.Skip(false)
	applied := s.Apply(base, r)
	require.Len(t, applied.wheres, 2)
	require.Len(t, applied.orders, 1)
	assert.Equal(t, "users.name", applied.orders[0].column)
	assert.Len(t, base.wheres, 1, "criteria must not mutate the input query")
}

// TestCriteriaStack_EmptyIsIdentity 测试空栈为恒等变换
func TestCriteriaStack_EmptyIsIdentity(t *testing.T) {
	q := NewQuery().Take(3)
	assert.Same(t, q, NewCriteriaStack().Apply(q, nil))
}

// TestCriteriaStack_NilResultIgnored 测试返回 nil 的条件不影响结果
func TestCriteriaStack_NilResultIgnored(t *testing.T) {
	s := NewCriteriaStack(
		NewCriteria("noop", func(*Query, IRepositoryContext) *Query { return nil }),
		ageAbove{min: 5},
	)
	out := s.Apply(NewQuery(), nil)
	require.NotNil(t, out)
	assert.Len(t, out.wheres, 1)
}
