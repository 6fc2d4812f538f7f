package repo

import (
	"sort"
	"strings"
)

// Filter 查询条件描述，封闭的变体集合：
// Equal / Compare / InList / Between / Null / Group / Predicate / Raw。
type Filter interface {
	isFilter()
}

// Equal 等值条件，Value 为 nil 时编译为 IS NULL
type Equal struct {
	Field string
	Value any
}

// Compare 带运算符的比较条件，运算符见 ParseOperator
type Compare struct {
	Field string
	Op    string
	Value any
}

// InList IN / NOT IN；空列表编译为恒假（IN）或恒真（NOT IN）
type InList struct {
	Field  string
	Values []any
	Not    bool
}

// Between BETWEEN / NOT BETWEEN
type Between struct {
	Field     string
	Low, High any
	Not       bool
}

// Null IS NULL / IS NOT NULL
type Null struct {
	Field string
	Not   bool
}

// Group 嵌套条件组，Or 为 true 时组内以 OR 连接
type Group struct {
	Filters []Filter
	Or      bool
}

// Predicate 在空查询上构造条件，结果作为一个嵌套分组
type Predicate func(q *Query) *Query

// Raw 受信任的原样表达式，占位符使用 ?
type Raw struct {
	Expr string
	Args []any
}

// relationFilter 关联存在性条件（Has / DoesntHave / WhereHas）
type relationFilter struct {
	relation string
	op       string
	count    int
	where    Predicate
}

func (Equal) isFilter()          {}
func (Compare) isFilter()        {}
func (InList) isFilter()         {}
func (Between) isFilter()        {}
func (Null) isFilter()           {}
func (Group) isFilter()          {}
func (Predicate) isFilter()      {}
func (Raw) isFilter()            {}
func (relationFilter) isFilter() {}

// Operator 归一化后的比较运算符
type Operator string

const (
	OpEq        Operator = "="
	OpNe        Operator = "!="
	OpLt        Operator = "<"
	OpLte       Operator = "<="
	OpGt        Operator = ">"
	OpGte       Operator = ">="
	OpLike      Operator = "like"
	OpNotLike   Operator = "not like"
	OpILike     Operator = "ilike"
	OpNotILike  Operator = "not ilike"
	OpRegexp    Operator = "regexp"
	OpNotRegexp Operator = "not regexp"
)

// ParseOperator 解析运算符（大小写不敏感，<> 视为 !=）
func ParseOperator(op string) (Operator, bool) {
	normalized := strings.Join(strings.Fields(strings.ToLower(op)), " ")
	switch normalized {
	case "=", "==":
		return OpEq, true
	case "!=", "<>":
		return OpNe, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLte, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGte, true
	case "like":
		return OpLike, true
	case "not like":
		return OpNotLike, true
	case "ilike":
		return OpILike, true
	case "not ilike":
		return OpNotILike, true
	case "regexp":
		return OpRegexp, true
	case "not regexp":
		return OpNotRegexp, true
	}
	return "", false
}

// Where 构造条件：两个参数为等值，三个参数为 (字段, 运算符, 值)。
func Where(field string, args ...any) Filter {
	switch len(args) {
	case 1:
		return Equal{Field: field, Value: args[0]}
	case 2:
		op, _ := args[0].(string)
		return Compare{Field: field, Op: op, Value: args[1]}
	default:
		return invalidFilter{reason: "where expects a value or an operator and a value"}
	}
}

// Contains 构造 LIKE %value% 条件
func Contains(field, value string) Filter {
	return Compare{Field: field, Op: string(OpLike), Value: "%" + value + "%"}
}

// Or 以 OR 连接的条件组
func Or(filters ...Filter) Filter { return Group{Filters: filters, Or: true} }

// And 以 AND 连接的条件组
func And(filters ...Filter) Filter { return Group{Filters: filters} }

// Map 将键值对展开为等值条件（按键排序，保证生成的 SQL 稳定）
func Map(attrs map[string]any) []Filter {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	filters := make([]Filter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, Equal{Field: k, Value: attrs[k]})
	}
	return filters
}

// ParseFilterTuple 解析元组形式的条件：[field, value] 或 [field, op, value]
func ParseFilterTuple(tuple []any) (Filter, error) {
	if len(tuple) != 2 && len(tuple) != 3 {
		return nil, invalidInput("filter tuple must have 2 or 3 elements, got %d", len(tuple))
	}
	field, ok := tuple[0].(string)
	if !ok {
		return nil, invalidInput("filter field must be a string, got %T", tuple[0])
	}
	if len(tuple) == 2 {
		return Equal{Field: field, Value: tuple[1]}, nil
	}
	op, ok := tuple[1].(string)
	if !ok {
		return nil, invalidInput("filter operator must be a string, got %T", tuple[1])
	}
	if _, ok := ParseOperator(op); !ok {
		return nil, invalidInput("unknown operator %q", op)
	}
	return Compare{Field: field, Op: op, Value: tuple[2]}, nil
}

// invalidFilter 构造期即可判定的非法条件，编译时报错
// nodeGroup 已挂接的条件序列，整体编译为一个括号分组
type nodeGroup []whereNode

func (nodeGroup) isFilter() {}

type invalidFilter struct {
	reason string
}

func (invalidFilter) isFilter() {}
