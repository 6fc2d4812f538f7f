package repo

import (
	"sort"
	"strings"

	"repokit/data/orm"
)

// 后缀运算符；_not_in 必须排在 _in 之前匹配
var filterSuffixes = []struct {
	suffix string
	op     Operator
}{
	{"_not_in", ""},
	{"_in", ""},
	{"_like", OpLike},
	{"_gte", OpGte},
	{"_gt", OpGt},
	{"_lte", OpLte},
	{"_lt", OpLt},
	{"_ne", OpNe},
}

// ParseFilters 将查询参数转换为条件，仅保留模型声明的列，其余键忽略。
//
//	name=foo         name = 'foo'
//	name_like=foo    name LIKE '%foo%'
//	age_gte=18       age >= 18
//	id_in=1,2,3      id IN (1, 2, 3)
//	id_not_in=4      id NOT IN (4)
func ParseFilters(meta *orm.ModelMeta, params map[string]string) []Filter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make([]Filter, 0, len(keys))
	for _, key := range keys {
		if f := parseFilterParam(meta, key, params[key]); f != nil {
			filters = append(filters, f)
		}
	}
	return filters
}

// ParseFilters 以当前模型解析查询参数
func (r *Repo[T]) ParseFilters(params map[string]string) []Filter {
	return ParseFilters(r.meta, params)
}

func parseFilterParam(meta *orm.ModelMeta, key, value string) Filter {
	for _, s := range filterSuffixes {
		field, ok := strings.CutSuffix(key, s.suffix)
		if !ok || !isDeclared(meta, field) {
			continue
		}
		switch s.suffix {
		case "_in", "_not_in":
			return InList{Field: field, Values: splitList(value), Not: s.suffix == "_not_in"}
		case "_like":
			return Contains(field, value)
		default:
			return Compare{Field: field, Op: string(s.op), Value: value}
		}
	}
	if isDeclared(meta, key) {
		return Equal{Field: key, Value: value}
	}
	return nil
}

func isDeclared(meta *orm.ModelMeta, field string) bool {
	return field != "" && isAllowedField(meta, field)
}

func splitList(value string) []any {
	parts := strings.Split(value, ",")
	values := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}
