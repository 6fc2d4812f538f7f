package repo

import (
	"sync"

	"repokit/data/db/dialect"
	"repokit/data/orm"
)

// CriteriaKind 条件对象的类别，栈内同类别至多一个
type CriteriaKind string

// IRepositoryContext 条件对象可读取的仓储信息
type IRepositoryContext interface {
	Table() string
	PrimaryKey() string
	Meta() *orm.ModelMeta
	Dialect() dialect.Dialect
}

// ICriteria 可复用的查询变换，Apply 必须是纯函数
type ICriteria interface {
	Kind() CriteriaKind
	Apply(q *Query, repo IRepositoryContext) *Query
}

// CriteriaFunc 以函数实现 ICriteria
type CriteriaFunc struct {
	kind CriteriaKind
	fn   func(q *Query, repo IRepositoryContext) *Query
}

// NewCriteria 以类别与函数构造条件对象
func NewCriteria(kind CriteriaKind, fn func(q *Query, repo IRepositoryContext) *Query) CriteriaFunc {
	return CriteriaFunc{kind: kind, fn: fn}
}

func (c CriteriaFunc) Kind() CriteriaKind { return c.kind }

func (c CriteriaFunc) Apply(q *Query, repo IRepositoryContext) *Query {
	if c.fn == nil {
		return q
	}
	return c.fn(q, repo)
}

// CriteriaStack 按插入顺序应用的条件栈。
//
// 压入同类别条件时先移除旧条件再追加到末尾；skip 为 true 时 Apply 不做任何变换。
// 仓储实例可被多个 goroutine 共享，栈本身加锁保护。
type CriteriaStack struct {
	mu    sync.RWMutex
	items []ICriteria
	skip  bool
}

// NewCriteriaStack 创建条件栈
func NewCriteriaStack(items ...ICriteria) *CriteriaStack {
	s := &CriteriaStack{}
	for _, c := range items {
		s.Push(c)
	}
	return s
}

// Push 压入条件，替换同类别的已有条件
func (s *CriteriaStack) Push(c ICriteria) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = removeKind(s.items, c.Kind())
	s.items = append(s.items, c)
}

// Pop 移除指定类别的条件，返回是否存在
func (s *CriteriaStack) Pop(kind CriteriaKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.items)
	s.items = removeKind(s.items, kind)
	return len(s.items) != before
}

// Has 是否存在指定类别的条件
func (s *CriteriaStack) Has(kind CriteriaKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.items {
		if c.Kind() == kind {
			return true
		}
	}
	return false
}

// Items 返回条件副本（按应用顺序）
func (s *CriteriaStack) Items() []ICriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ICriteria(nil), s.items...)
}

func (s *CriteriaStack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset 清空条件并恢复应用
func (s *CriteriaStack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.skip = false
}

// Skip 设置是否跳过条件应用，不清空栈
func (s *CriteriaStack) Skip(status bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip = status
}

func (s *CriteriaStack) Skipped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skip
}

// Apply 依次应用全部条件；跳过或为空时原样返回
func (s *CriteriaStack) Apply(q *Query, repo IRepositoryContext) *Query {
	s.mu.RLock()
	if s.skip || len(s.items) == 0 {
		s.mu.RUnlock()
		return q
	}
	items := append([]ICriteria(nil), s.items...)
	s.mu.RUnlock()

	for _, c := range items {
		if next := c.Apply(q, repo); next != nil {
			q = next
		}
	}
	return q
}

func removeKind(items []ICriteria, kind CriteriaKind) []ICriteria {
	out := items[:0]
	for _, c := range items {
		if c.Kind() != kind {
			out = append(out, c)
		}
	}
	// 清理尾部引用
	for i := len(out); i < len(items); i++ {
		items[i] = nil
	}
	return out
}
