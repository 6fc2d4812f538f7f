package repo

import (
	"fmt"
	"strings"

	"repokit/data/db/dialect"
	"repokit/data/orm"
)

// compiler 将 Query 编译为适配器可执行的 orm.QueryOptions。
//
// 条件一律以 ? 占位绑定参数，标识符经安全校验后才拼入 SQL。
type compiler struct {
	table   string
	pk      string
	meta    *orm.ModelMeta
	dialect dialect.Dialect

	// related 编译过程中引用了关联表
	related bool
}

// compileRead 编译读查询：条件、软删除范围、连接、返回列、排序、分组、分页与预加载
func (c *compiler) compileRead(q *Query) (orm.QueryOptions, error) {
	var opts orm.QueryOptions
	if err := q.Err(); err != nil {
		return opts, invalidQuery(err)
	}

	where, err := c.compileWhere(q)
	if err != nil {
		return opts, err
	}
	if where.Expr != "" {
		opts.Where = []orm.Condition{where}
	}

	for _, j := range q.joins {
		resolved, err := j.resolve(c.table, c.pk)
		if err != nil {
			return opts, err
		}
		opts.Joins = append(opts.Joins, orm.Join{
			Kind:  strings.ToUpper(string(resolved.Type)),
			Table: resolved.SecondaryTable,
			On: resolved.SecondaryTable + "." + resolved.SecondaryKey + " = " +
				resolved.PrimaryTable + "." + resolved.PrimaryKey,
		})
	}

	for _, s := range q.selects {
		if err := checkSelect(s); err != nil {
			return opts, err
		}
		opts.Select = append(opts.Select, s)
	}
	if len(opts.Select) == 0 && (len(opts.Joins) > 0 || len(q.counts) > 0) {
		// 连接后 * 会带出副表同名列
		opts.Select = []string{c.table + ".*"}
	}
	for _, name := range q.counts {
		expr, err := c.relationCount(name)
		if err != nil {
			return opts, err
		}
		opts.Select = append(opts.Select, expr)
	}

	for _, o := range q.orders {
		if o.random {
			opts.OrderBy = append(opts.OrderBy, orm.OrderBy{Column: c.dialect.RandomFunc(), Raw: true})
			continue
		}
		if err := checkField(o.column); err != nil {
			return opts, err
		}
		opts.OrderBy = append(opts.OrderBy, orm.OrderBy{Column: o.column, Desc: o.desc})
	}

	for _, g := range q.groupBy {
		if err := checkField(g); err != nil {
			return opts, err
		}
		opts.GroupBy = append(opts.GroupBy, g)
	}

	for _, name := range q.with {
		if _, ok := c.meta.Association(name); !ok {
			return opts, invalidInput("%s has no relation %q", c.table, name)
		}
		opts.Preload = append(opts.Preload, name)
	}

	opts.Limit = q.limit
	opts.Offset = q.offset
	return opts, nil
}

// compileWhere 编译条件并附加软删除范围
func (c *compiler) compileWhere(q *Query) (orm.Condition, error) {
	if err := q.Err(); err != nil {
		return orm.Condition{}, invalidQuery(err)
	}
	expr, args, err := c.compileNodes(q.wheres)
	if err != nil {
		return orm.Condition{}, err
	}

	var scope string
	if col := c.softDeleteColumn(); col != "" {
		switch q.trashed {
		case withoutTrashed:
			scope = col + " IS NULL"
		case onlyTrashed:
			scope = col + " IS NOT NULL"
		}
	}
	switch {
	case scope == "":
	case expr == "":
		expr = scope
	case len(q.wheres) == 1:
		// 单个节点已是原子表达式或自带括号
		expr = expr + " AND " + scope
	default:
		expr = "(" + expr + ") AND " + scope
	}
	return orm.Condition{Expr: expr, Args: args}, nil
}

func (c *compiler) softDeleteColumn() string {
	if c.meta == nil || c.meta.SoftDeleteColumn == "" {
		return ""
	}
	return c.table + "." + c.meta.SoftDeleteColumn
}

// compileNodes 依次挂接条件：首个条件直接使用，其后按节点标记以 AND / OR 连接
func (c *compiler) compileNodes(nodes []whereNode) (string, []any, error) {
	var sb strings.Builder
	var args []any
	for _, n := range nodes {
		expr, a, err := c.compileFilter(n.filter)
		if err != nil {
			return "", nil, err
		}
		if expr == "" {
			continue
		}
		if sb.Len() > 0 {
			if n.or {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		sb.WriteString(expr)
		args = append(args, a...)
	}
	return sb.String(), args, nil
}

func (c *compiler) compileFilter(f Filter) (string, []any, error) {
	switch v := f.(type) {
	case nil:
		return "", nil, nil
	case Equal:
		if err := checkField(v.Field); err != nil {
			return "", nil, err
		}
		if v.Value == nil {
			return v.Field + " IS NULL", nil, nil
		}
		return v.Field + " = ?", []any{v.Value}, nil
	case Compare:
		return c.compileCompare(v)
	case InList:
		if err := checkField(v.Field); err != nil {
			return "", nil, err
		}
		if len(v.Values) == 0 {
			if v.Not {
				return "1 = 1", nil, nil
			}
			return "1 = 0", nil, nil
		}
		op := " IN ("
		if v.Not {
			op = " NOT IN ("
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(v.Values)), ", ")
		return v.Field + op + placeholders + ")", append([]any(nil), v.Values...), nil
	case Between:
		if err := checkField(v.Field); err != nil {
			return "", nil, err
		}
		op := " BETWEEN ? AND ?"
		if v.Not {
			op = " NOT BETWEEN ? AND ?"
		}
		return v.Field + op, []any{v.Low, v.High}, nil
	case Null:
		if err := checkField(v.Field); err != nil {
			return "", nil, err
		}
		if v.Not {
			return v.Field + " IS NOT NULL", nil, nil
		}
		return v.Field + " IS NULL", nil, nil
	case Group:
		return c.compileGroup(v)
	case nodeGroup:
		expr, args, err := c.compileNodes(v)
		if err != nil || expr == "" {
			return "", nil, err
		}
		return "(" + expr + ")", args, nil
	case Predicate:
		if v == nil {
			return "", nil, nil
		}
		sub := v(NewQuery())
		if sub == nil {
			return "", nil, nil
		}
		if err := sub.Err(); err != nil {
			return "", nil, invalidQuery(err)
		}
		expr, args, err := c.compileNodes(sub.wheres)
		if err != nil || expr == "" {
			return "", nil, err
		}
		return "(" + expr + ")", args, nil
	case Raw:
		if strings.TrimSpace(v.Expr) == "" {
			return "", nil, nil
		}
		return "(" + v.Expr + ")", v.Args, nil
	case relationFilter:
		return c.compileRelation(v)
	case invalidFilter:
		return "", nil, invalidInput("%s", v.reason)
	default:
		return "", nil, invalidInput("unsupported filter %T", f)
	}
}

func (c *compiler) compileGroup(g Group) (string, []any, error) {
	parts := make([]string, 0, len(g.Filters))
	var args []any
	for _, f := range g.Filters {
		expr, a, err := c.compileFilter(f)
		if err != nil {
			return "", nil, err
		}
		if expr == "" {
			continue
		}
		parts = append(parts, expr)
		args = append(args, a...)
	}
	switch len(parts) {
	case 0:
		return "", nil, nil
	case 1:
		return parts[0], args, nil
	}
	sep := " AND "
	if g.Or {
		sep = " OR "
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func (c *compiler) compileCompare(v Compare) (string, []any, error) {
	if err := checkField(v.Field); err != nil {
		return "", nil, err
	}
	op, ok := ParseOperator(v.Op)
	if !ok {
		return "", nil, invalidInput("unknown operator %q", v.Op)
	}
	switch op {
	case OpEq:
		if v.Value == nil {
			return v.Field + " IS NULL", nil, nil
		}
	case OpNe:
		if v.Value == nil {
			return v.Field + " IS NOT NULL", nil, nil
		}
	case OpLike, OpNotLike:
		return c.dialect.Like(v.Field, op == OpNotLike, false), []any{v.Value}, nil
	case OpILike, OpNotILike:
		return c.dialect.Like(v.Field, op == OpNotILike, true), []any{v.Value}, nil
	case OpRegexp, OpNotRegexp:
		return c.dialect.Regexp(v.Field, op == OpNotRegexp), []any{v.Value}, nil
	}
	return fmt.Sprintf("%s %s ?", v.Field, op), []any{v.Value}, nil
}
