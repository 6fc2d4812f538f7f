package orm

import "strings"

// Condition 表示基础查询条件，Expr 使用占位符 ?，Args 对应参数列表。
type Condition struct {
	Expr string
	Args []any
}

// OrderBy 表示排序项；Raw 为 true 时 Column 是原样输出的表达式（如 RANDOM()）。
type OrderBy struct {
	Column string
	Desc   bool
	Raw    bool
}

// Join 表示一个连接子句：Kind JOIN Table ON On。
type Join struct {
	Kind  string // LEFT / RIGHT / INNER
	Table string
	On    string
	Args  []any
}

// QueryOptions 描述查询/更新的通用选项，多个 Where 之间为 AND。
type QueryOptions struct {
	Where     []Condition
	Joins     []Join
	OrderBy   []OrderBy
	GroupBy   []string
	Limit     int
	Offset    int
	Select    []string
	Preload   []string
	ForUpdate bool
}

// QueryOption 用于配置 QueryOptions。
type QueryOption func(*QueryOptions)

// WithWhere 追加查询条件。
func WithWhere(expr string, args ...any) QueryOption {
	return func(opts *QueryOptions) {
		if expr == "" {
			return
		}
		opts.Where = append(opts.Where, Condition{Expr: expr, Args: args})
	}
}

// WithJoin 追加连接子句。
func WithJoin(kind, table, on string, args ...any) QueryOption {
	return func(opts *QueryOptions) {
		if table == "" {
			return
		}
		opts.Joins = append(opts.Joins, Join{Kind: strings.ToUpper(kind), Table: table, On: on, Args: args})
	}
}

// WithGroupBy 追加分组字段。
func WithGroupBy(columns ...string) QueryOption {
	return func(opts *QueryOptions) {
		opts.GroupBy = append(opts.GroupBy, columns...)
	}
}

// WithOrderBy 追加排序。
func WithOrderBy(column string, desc bool) QueryOption {
	return func(opts *QueryOptions) {
		if column == "" {
			return
		}
		opts.OrderBy = append(opts.OrderBy, OrderBy{Column: column, Desc: desc})
	}
}

// WithOrderExpr 追加原样输出的排序表达式。
func WithOrderExpr(expr string) QueryOption {
	return func(opts *QueryOptions) {
		if expr == "" {
			return
		}
		opts.OrderBy = append(opts.OrderBy, OrderBy{Column: expr, Raw: true})
	}
}

// WithLimit 设置查询条数上限。
func WithLimit(limit int) QueryOption {
	return func(opts *QueryOptions) {
		if limit > 0 {
			opts.Limit = limit
		}
	}
}

// WithOffset 设置查询偏移。
func WithOffset(offset int) QueryOption {
	return func(opts *QueryOptions) {
		if offset > 0 {
			opts.Offset = offset
		}
	}
}

// WithSelect 指定返回列。
func WithSelect(columns ...string) QueryOption {
	return func(opts *QueryOptions) {
		opts.Select = append(opts.Select, columns...)
	}
}

// WithPreload 追加预加载关联。
func WithPreload(relations ...string) QueryOption {
	return func(opts *QueryOptions) {
		opts.Preload = append(opts.Preload, relations...)
	}
}

// WithForUpdate 标记需要行级锁。
func WithForUpdate() QueryOption {
	return func(opts *QueryOptions) {
		opts.ForUpdate = true
	}
}

// WithOptions 以整体 QueryOptions 追加（仓储编译结果透传给适配器时使用）。
func WithOptions(o QueryOptions) QueryOption {
	return func(opts *QueryOptions) {
		opts.Where = append(opts.Where, o.Where...)
		opts.Joins = append(opts.Joins, o.Joins...)
		opts.OrderBy = append(opts.OrderBy, o.OrderBy...)
		opts.GroupBy = append(opts.GroupBy, o.GroupBy...)
		opts.Select = append(opts.Select, o.Select...)
		opts.Preload = append(opts.Preload, o.Preload...)
		if o.Limit > 0 {
			opts.Limit = o.Limit
		}
		if o.Offset > 0 {
			opts.Offset = o.Offset
		}
		opts.ForUpdate = opts.ForUpdate || o.ForUpdate
	}
}

// CollectQueryOptions 聚合 QueryOption，方便适配器读取。
func CollectQueryOptions(options ...QueryOption) QueryOptions {
	var opts QueryOptions
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}
	return opts
}
