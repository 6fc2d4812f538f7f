package repo

import (
	"strings"

	"repokit/data/orm"
)

// isSafeFieldName 判断字段名是否为“安全标识符”。
//
// 允许形式：
//   - 单一标识符：foo, bar_1
//   - 带点限定名：table.column
//
// 每段首字符为 [A-Za-z_]，后续字符为 [A-Za-z0-9_]。
func isSafeFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			if i == 0 && !letter {
				return false
			}
			if i > 0 && !letter && !(ch >= '0' && ch <= '9') {
				return false
			}
		}
	}
	return true
}

func checkField(name string) error {
	if !isSafeFieldName(name) {
		return invalidInput("unsafe identifier %q", name)
	}
	return nil
}

// checkSelect 校验返回列：*、table.*、标识符或 “标识符 AS 别名”
func checkSelect(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "*" {
		return nil
	}
	if table, ok := strings.CutSuffix(expr, ".*"); ok && isSafeFieldName(table) {
		return nil
	}
	fields := strings.Fields(expr)
	switch {
	case len(fields) == 1 && isSafeFieldName(fields[0]):
		return nil
	case len(fields) == 3 && strings.EqualFold(fields[1], "as") &&
		isSafeFieldName(fields[0]) && isSafeFieldName(fields[2]) && !strings.Contains(fields[2], "."):
		return nil
	}
	return invalidInput("unsafe select expression %q", expr)
}

// isAllowedField 字段名需语法安全且属于模型列；动态模型只校验语法。
func isAllowedField(meta *orm.ModelMeta, field string) bool {
	if !isSafeFieldName(field) {
		return false
	}
	if meta == nil || meta.Dynamic || len(meta.Fields) == 0 {
		return true
	}
	column := field
	if idx := strings.LastIndex(field, "."); idx >= 0 {
		if field[:idx] != meta.Table {
			return false
		}
		column = field[idx+1:]
	}
	for _, f := range meta.Fields {
		if f.Column == column || f.Name == column {
			return true
		}
	}
	return false
}

// columnName 去掉表限定前缀
func columnName(field string) string {
	if idx := strings.LastIndex(field, "."); idx >= 0 {
		return field[idx+1:]
	}
	return field
}
