package basic

import (
	"fmt"
	"reflect"

	dbcore "repokit/data/db"
	"repokit/data/orm"
)

var mapType = reflect.TypeOf(map[string]any{})

// record 一行扫描结果；extra 保存结构体上没有对应字段的列
type record struct {
	value reflect.Value
	extra map[string]any
}

// scanRecords 读取并关闭 rows，按 typ（结构体或 map[string]any）构建记录
func scanRecords(rows dbcore.IRows, typ reflect.Type) ([]record, error) {
	defer rows.Close()

	if typ == nil || (typ.Kind() != reflect.Struct && typ != mapType) {
		return nil, fmt.Errorf("%w: unsupported destination %v", orm.ErrInvalidModel, typ)
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var byColumn map[string]orm.FieldMeta
	if typ.Kind() == reflect.Struct {
		byColumn = make(map[string]orm.FieldMeta)
		for _, f := range orm.StructFields(typ) {
			byColumn[f.Column] = f
		}
	}

	var out []record
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		if typ == mapType {
			m := make(map[string]any, len(cols))
			for i, col := range cols {
				m[col] = normalize(raw[i])
			}
			holder := reflect.New(mapType).Elem()
			holder.Set(reflect.ValueOf(m))
			out = append(out, record{value: holder, extra: m})
			continue
		}

		item := reflect.New(typ).Elem()
		var extra map[string]any
		for i, col := range cols {
			f, ok := byColumn[col]
			if !ok {
				if extra == nil {
					extra = make(map[string]any)
				}
				extra[col] = normalize(raw[i])
				continue
			}
			if err := orm.SetFieldValue(item.FieldByIndex(f.Index), raw[i]); err != nil {
				return nil, fmt.Errorf("basic: scan column %s: %w", col, err)
			}
		}
		out = append(out, record{value: item, extra: extra})
	}
	return out, rows.Err()
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// recordType 从 *T、*[]T、*[]*T、*map[string]any、*[]map[string]any 推断记录类型
func recordType(dest any) reflect.Type {
	t := reflect.TypeOf(dest)
	if t == nil || t.Kind() != reflect.Ptr {
		return nil
	}
	t = t.Elem()
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func sliceOf(dest any) (reflect.Value, error) {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("%w: dest must be a pointer to slice, got %T", orm.ErrInvalidModel, dest)
	}
	return rv.Elem(), nil
}

func assignFirst(dest any, value reflect.Value) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: dest must be non-nil pointer, got %T", orm.ErrInvalidModel, dest)
	}
	target := rv.Elem()
	if target.Kind() == reflect.Ptr {
		target.Set(value.Addr())
		return nil
	}
	target.Set(value)
	return nil
}

// ownersOf 返回 dest 中可写的记录值（结构体可寻址值或 map 值）
func ownersOf(dest any) []reflect.Value {
	rv := reflect.ValueOf(dest).Elem()
	if rv.Kind() != reflect.Slice {
		for rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		return []reflect.Value{rv}
	}
	owners := make([]reflect.Value, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		for item.Kind() == reflect.Ptr {
			item = item.Elem()
		}
		owners = append(owners, item)
	}
	return owners
}
