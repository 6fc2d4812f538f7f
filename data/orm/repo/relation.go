package repo

import (
	"strings"

	"repokit/data/orm"
)

// relationSubquery 生成关联子查询：SELECT sel FROM 关联表 WHERE 关联到当前行
func (c *compiler) relationSubquery(name, sel string) (string, *orm.AssociationMeta, error) {
	a, ok := c.meta.Association(name)
	if !ok {
		return "", nil, invalidInput("%s has no relation %q", c.table, name)
	}
	c.related = true
	target := a.TargetTable
	var from, cond string
	switch a.Kind {
	case orm.AssociationHasOne, orm.AssociationHasMany:
		from = target
		cond = target + "." + a.ForeignKey + " = " + c.table + "." + a.ReferenceKey
	case orm.AssociationBelongsTo:
		from = target
		cond = target + "." + a.TargetKey + " = " + c.table + "." + a.ForeignKey
	case orm.AssociationManyToMany:
		from = target + " INNER JOIN " + a.JoinTable + " ON " +
			a.JoinTable + "." + a.JoinReferenceKey + " = " + target + "." + a.TargetKey
		cond = a.JoinTable + "." + a.JoinForeignKey + " = " + c.table + "." + a.ReferenceKey
	default:
		return "", nil, invalidInput("relation %q has unsupported kind %q", name, a.Kind)
	}
	for _, ident := range []string{target, a.JoinTable, a.ForeignKey, a.ReferenceKey, a.TargetKey, a.JoinForeignKey, a.JoinReferenceKey} {
		if ident == "" {
			continue
		}
		if err := checkField(ident); err != nil {
			return "", nil, err
		}
	}
	return "SELECT " + sel + " FROM " + from + " WHERE " + cond, a, nil
}

// relationCount WithCount 使用的统计列
func (c *compiler) relationCount(name string) (string, error) {
	sub, a, err := c.relationSubquery(name, "COUNT(*)")
	if err != nil {
		return "", err
	}
	return "(" + sub + ") AS " + orm.SnakeCase(a.Name) + "_count", nil
}

// compileRelation 编译 Has / DoesntHave / WhereHas。
//
// “至少一条”与“没有”使用 EXISTS / NOT EXISTS，其余数量比较使用 COUNT 子查询。
func (c *compiler) compileRelation(rf relationFilter) (string, []any, error) {
	op, ok := ParseOperator(rf.op)
	if !ok {
		return "", nil, invalidInput("unknown operator %q for relation %q", rf.op, rf.relation)
	}
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
	default:
		return "", nil, invalidInput("operator %q cannot compare relation counts", rf.op)
	}

	exists := op == OpGte && rf.count == 1 || op == OpGt && rf.count == 0
	missing := op == OpLt && rf.count == 1 || op == OpEq && rf.count == 0

	sel := "COUNT(*)"
	if exists || missing {
		sel = "1"
	}
	sub, a, err := c.relationSubquery(rf.relation, sel)
	if err != nil {
		return "", nil, err
	}

	var args []any
	if rf.where != nil {
		inner := &compiler{table: a.TargetTable, dialect: c.dialect}
		if q := rf.where(NewQuery()); q != nil {
			if err := q.Err(); err != nil {
				return "", nil, invalidQuery(err)
			}
			expr, innerArgs, err := inner.compileNodes(q.wheres)
			if err != nil {
				return "", nil, err
			}
			if expr != "" {
				sub += " AND (" + expr + ")"
				args = innerArgs
			}
		}
	}

	switch {
	case exists:
		return "EXISTS (" + sub + ")", args, nil
	case missing:
		return "NOT EXISTS (" + sub + ")", args, nil
	}
	return "(" + sub + ") " + strings.TrimSpace(string(op)) + " ?", append(args, rf.count), nil
}
