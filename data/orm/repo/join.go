package repo

import "strings"

// JoinType 连接类型
type JoinType string

const (
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinInner JoinType = "inner"
)

// JoinSpec 连接描述：SecondaryTable.SecondaryKey = PrimaryTable.PrimaryKey。
//
// Type 默认 left；PrimaryTable / PrimaryKey 为空时取仓储自身的表与主键。
type JoinSpec struct {
	Type           JoinType
	PrimaryTable   string
	PrimaryKey     string
	SecondaryTable string
	SecondaryKey   string
}

// ParseJoinTuple 解析元组形式的连接描述：
//
//	[secondary_table, secondary_key]
//	[type, secondary_table, secondary_key]
//	[type, secondary_table, secondary_key, primary_key]
//	[type, primary_table, primary_key, secondary_table, secondary_key]
func ParseJoinTuple(tuple []string) (JoinSpec, error) {
	var spec JoinSpec
	switch len(tuple) {
	case 2:
		spec.SecondaryTable, spec.SecondaryKey = tuple[0], tuple[1]
	case 3:
		spec.Type = JoinType(tuple[0])
		spec.SecondaryTable, spec.SecondaryKey = tuple[1], tuple[2]
	case 4:
		spec.Type = JoinType(tuple[0])
		spec.SecondaryTable, spec.SecondaryKey, spec.PrimaryKey = tuple[1], tuple[2], tuple[3]
	case 5:
		spec.Type = JoinType(tuple[0])
		spec.PrimaryTable, spec.PrimaryKey = tuple[1], tuple[2]
		spec.SecondaryTable, spec.SecondaryKey = tuple[3], tuple[4]
	default:
		return spec, invalidInput("join tuple must have 2 to 5 elements, got %d", len(tuple))
	}
	if _, err := parseJoinType(spec.Type); err != nil {
		return spec, err
	}
	return spec, nil
}

func parseJoinType(t JoinType) (JoinType, error) {
	switch JoinType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case "", JoinLeft:
		return JoinLeft, nil
	case JoinRight:
		return JoinRight, nil
	case JoinInner, "join":
		return JoinInner, nil
	}
	return "", invalidInput("unknown join type %q", t)
}

// resolve 以仓储表与主键补全缺省槽位
func (j JoinSpec) resolve(table, pk string) (JoinSpec, error) {
	typ, err := parseJoinType(j.Type)
	if err != nil {
		return j, err
	}
	j.Type = typ
	if j.PrimaryTable == "" {
		j.PrimaryTable = table
	}
	if j.PrimaryKey == "" {
		j.PrimaryKey = pk
	}
	if j.SecondaryTable == "" || j.SecondaryKey == "" {
		return j, invalidInput("join needs a secondary table and key")
	}
	for _, ident := range []string{j.PrimaryTable, j.PrimaryKey, j.SecondaryTable, j.SecondaryKey} {
		if err := checkField(ident); err != nil {
			return j, err
		}
	}
	return j, nil
}
