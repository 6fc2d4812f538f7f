package repo

import "strings"

// ScopeFunc 单次查询的范围钩子
type ScopeFunc func(q *Query) *Query

type trashedMode int

const (
	withoutTrashed trashedMode = iota
	withTrashed
	onlyTrashed
)

type whereNode struct {
	filter Filter
	or     bool
}

type orderNode struct {
	column string
	desc   bool
	random bool
}

// Query 待执行查询的描述。
//
// Query 是不可变值：所有修饰方法返回新的 *Query，接收者不变，
// 因此同一个 Query 可以被多次执行或在 goroutine 间共享。nil 等价于空查询。
type Query struct {
	selects   []string
	wheres    []whereNode
	joins     []JoinSpec
	orders    []orderNode
	groupBy   []string
	limit     int
	offset    int
	with      []string
	counts    []string
	hidden    []string
	visible   []string
	trashed   trashedMode
	scope     ScopeFunc
	skipCache bool
	errs      []error
}

// NewQuery 创建空查询
func NewQuery() *Query { return &Query{} }

func (q *Query) clone() *Query {
	if q == nil {
		return &Query{}
	}
	c := *q
	c.selects = append([]string(nil), q.selects...)
	c.wheres = append([]whereNode(nil), q.wheres...)
	c.joins = append([]JoinSpec(nil), q.joins...)
	c.orders = append([]orderNode(nil), q.orders...)
	c.groupBy = append([]string(nil), q.groupBy...)
	c.with = append([]string(nil), q.with...)
	c.counts = append([]string(nil), q.counts...)
	c.hidden = append([]string(nil), q.hidden...)
	c.visible = append([]string(nil), q.visible...)
	c.errs = append([]error(nil), q.errs...)
	return &c
}

func (q *Query) attach(f Filter, or bool) *Query {
	c := q.clone()
	c.wheres = append(c.wheres, whereNode{filter: f, or: or})
	return c
}

// Select 追加返回列
func (q *Query) Select(columns ...string) *Query {
	c := q.clone()
	c.selects = append(c.selects, columns...)
	return c
}

// Where 追加一组以 AND 连接的条件，整组以 AND 挂接
func (q *Query) Where(filters ...Filter) *Query {
	if len(filters) == 0 {
		return q.clone()
	}
	return q.attach(Group{Filters: filters}, false)
}

// OrWhere 追加一组以 AND 连接的条件，整组以 OR 挂接
func (q *Query) OrWhere(filters ...Filter) *Query {
	if len(filters) == 0 {
		return q.clone()
	}
	return q.attach(Group{Filters: filters}, true)
}

// WhereConditions 组内条件按 or 以 AND / OR 连接，整组以 AND 挂接
func (q *Query) WhereConditions(filters []Filter, or bool) *Query {
	if len(filters) == 0 {
		return q.clone()
	}
	return q.attach(Group{Filters: filters, Or: or}, false)
}

// WhereRaw 追加受信任的原样条件
func (q *Query) WhereRaw(expr string, args ...any) *Query {
	return q.attach(Raw{Expr: expr, Args: args}, false)
}

// Join 追加连接
func (q *Query) Join(specs ...JoinSpec) *Query {
	c := q.clone()
	c.joins = append(c.joins, specs...)
	return c
}

// JoinTuples 以元组形式追加连接，非法元组在执行时报错
func (q *Query) JoinTuples(tuples ...[]string) *Query {
	c := q.clone()
	for _, t := range tuples {
		spec, err := ParseJoinTuple(t)
		if err != nil {
			c.errs = append(c.errs, err)
			continue
		}
		c.joins = append(c.joins, spec)
	}
	return c
}

// OrderBy 追加排序，direction 为 asc / desc（大小写不敏感，空为 asc）
func (q *Query) OrderBy(column string, direction ...string) *Query {
	c := q.clone()
	dir := ASC
	if len(direction) > 0 && direction[0] != "" {
		parsed, ok := ParseSortDirection(direction[0])
		if !ok {
			c.errs = append(c.errs, invalidInput("invalid sort direction %q", direction[0]))
			return c
		}
		dir = parsed
	}
	c.orders = append(c.orders, orderNode{column: column, desc: dir == DESC})
	return c
}

// InRandomOrder 随机排序
func (q *Query) InRandomOrder() *Query {
	c := q.clone()
	c.orders = append(c.orders, orderNode{random: true})
	return c
}

// GroupBy 追加分组
func (q *Query) GroupBy(columns ...string) *Query {
	c := q.clone()
	c.groupBy = append(c.groupBy, columns...)
	return c
}

// Skip 跳过前 n 条
func (q *Query) Skip(n int) *Query {
	c := q.clone()
	c.offset = max(n, 0)
	return c
}

// Take 最多返回 n 条，n <= 0 表示不限制
func (q *Query) Take(n int) *Query {
	c := q.clone()
	c.limit = max(n, 0)
	return c
}

// Limit 同 Take
func (q *Query) Limit(n int) *Query { return q.Take(n) }

// With 预加载关联
func (q *Query) With(relations ...string) *Query {
	c := q.clone()
	c.with = appendUnique(c.with, relations...)
	return c
}

// WithCount 以 <relation>_count 列返回关联数量
func (q *Query) WithCount(relations ...string) *Query {
	c := q.clone()
	c.counts = appendUnique(c.counts, relations...)
	return c
}

// Has 要求关联数量满足 op count；无参数时为“至少一条”
func (q *Query) Has(relation string, opAndCount ...any) *Query {
	rf := relationFilter{relation: relation, op: ">=", count: 1}
	if len(opAndCount) == 2 {
		op, okOp := opAndCount[0].(string)
		n, okN := opAndCount[1].(int)
		if !okOp || !okN {
			c := q.clone()
			c.errs = append(c.errs, invalidInput("has(%s) expects an operator string and an int count", relation))
			return c
		}
		rf.op, rf.count = op, n
	} else if len(opAndCount) != 0 {
		c := q.clone()
		c.errs = append(c.errs, invalidInput("has(%s) expects an operator and a count", relation))
		return c
	}
	return q.attach(rf, false)
}

// DoesntHave 要求不存在关联记录
func (q *Query) DoesntHave(relation string) *Query {
	return q.attach(relationFilter{relation: relation, op: "<", count: 1}, false)
}

// WhereHas 要求存在满足条件的关联记录，条件中的未限定列指向关联表
func (q *Query) WhereHas(relation string, where Predicate) *Query {
	return q.attach(relationFilter{relation: relation, op: ">=", count: 1, where: where}, false)
}

// Hidden 结果中隐藏的列
func (q *Query) Hidden(columns ...string) *Query {
	c := q.clone()
	c.hidden = appendUnique(c.hidden, columns...)
	return c
}

// Visible 结果中仅保留的列
func (q *Query) Visible(columns ...string) *Query {
	c := q.clone()
	c.visible = appendUnique(c.visible, columns...)
	return c
}

// WithTrashed 包含已软删除记录
func (q *Query) WithTrashed() *Query {
	c := q.clone()
	c.trashed = withTrashed
	return c
}

// OnlyTrashed 仅查询已软删除记录
func (q *Query) OnlyTrashed() *Query {
	c := q.clone()
	c.trashed = onlyTrashed
	return c
}

// ScopeQuery 设置范围钩子，执行前应用一次
func (q *Query) ScopeQuery(fn ScopeFunc) *Query {
	c := q.clone()
	c.scope = fn
	return c
}

// ResetScope 清除范围钩子
func (q *Query) ResetScope() *Query {
	c := q.clone()
	c.scope = nil
	return c
}

// SkipCache 本次查询绕过结果缓存
func (q *Query) SkipCache() *Query {
	c := q.clone()
	c.skipCache = true
	return c
}

// Err 返回构造过程中累积的第一个错误
func (q *Query) Err() error {
	if q == nil || len(q.errs) == 0 {
		return nil
	}
	return q.errs[0]
}

// applyScope 应用并清除范围钩子
func (q *Query) applyScope() *Query {
	if q == nil || q.scope == nil {
		return q.clone()
	}
	scoped := q.scope(q.ResetScope())
	if scoped == nil {
		return q.ResetScope()
	}
	return scoped.ResetScope()
}

// grouped 含 OR 挂接的多个条件折叠为一个带括号的节点，其后以 AND 追加的条件作用于整体
func (q *Query) grouped() *Query {
	c := q.clone()
	if len(c.wheres) < 2 {
		return c
	}
	for _, n := range c.wheres[1:] {
		if n.or {
			c.wheres = []whereNode{{filter: nodeGroup(c.wheres)}}
			return c
		}
	}
	return c
}

// forWrite 写操作读取记录时使用的查询：只保留条件、范围钩子与软删除模式
func (q *Query) forWrite() *Query {
	if q == nil {
		return &Query{skipCache: true}
	}
	return &Query{
		wheres:    append([]whereNode(nil), q.wheres...),
		trashed:   q.trashed,
		scope:     q.scope,
		skipCache: true,
		errs:      append([]error(nil), q.errs...),
	}
}

// defaultSelect 未指定返回列时使用 columns
func (q *Query) defaultSelect(columns []string) *Query {
	if len(columns) == 0 || len(q.selects) > 0 {
		return q
	}
	return q.Select(columns...)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if strings.EqualFold(d, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
