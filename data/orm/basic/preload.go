package basic

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"repokit/data/orm"
)

const pivotOwnerColumn = "pivot_owner_key"

// preload 为 owners 批量加载关联，每个关联一次查询
func (m *model) preload(ctx context.Context, owners []reflect.Value, names []string) error {
	for _, name := range names {
		assoc, ok := m.meta.Association(name)
		if !ok {
			return fmt.Errorf("%w: %s has no relation %q", orm.ErrInvalidAssociation, m.table, name)
		}
		if !m.meta.Dynamic && assoc.FieldIndex == nil {
			return fmt.Errorf("%w: relation %q has no field to load into", orm.ErrUnsupported, name)
		}
		if err := m.preloadOne(ctx, owners, assoc); err != nil {
			return fmt.Errorf("basic: preload %s: %w", name, err)
		}
	}
	return nil
}

func (m *model) preloadOne(ctx context.Context, owners []reflect.Value, assoc *orm.AssociationMeta) error {
	ownerKey := assoc.ReferenceKey
	if assoc.Kind == orm.AssociationBelongsTo {
		ownerKey = assoc.ForeignKey
	}

	keys := make([]any, 0, len(owners))
	seen := make(map[string]bool, len(owners))
	for _, o := range owners {
		v, ok := m.ownerValue(o, ownerKey)
		if !ok || v == nil {
			continue
		}
		k := fmt.Sprint(v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}

	targetType := mapType
	if !m.meta.Dynamic && assoc.TargetType != nil {
		targetType = assoc.TargetType
	}

	grouped := make(map[string][]reflect.Value)
	if len(keys) > 0 {
		records, matchColumn, err := m.queryRelated(ctx, assoc, keys, targetType)
		if err != nil {
			return err
		}
		for _, r := range records {
			var k any
			if matchColumn == pivotOwnerColumn {
				k = r.extra[pivotOwnerColumn]
			} else {
				k, _ = recordValue(r, matchColumn)
			}
			grouped[fmt.Sprint(k)] = append(grouped[fmt.Sprint(k)], r.value)
		}
	}

	for _, o := range owners {
		v, _ := m.ownerValue(o, ownerKey)
		var matches []reflect.Value
		if v != nil {
			matches = grouped[fmt.Sprint(v)]
		}
		if err := m.setRelation(o, assoc, matches); err != nil {
			return err
		}
	}
	return nil
}

// queryRelated 查询关联记录，返回用于与 owner 匹配的列
func (m *model) queryRelated(ctx context.Context, assoc *orm.AssociationMeta, keys []any, typ reflect.Type) ([]record, string, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	target := assoc.TargetTable

	var (
		builder     = m.orm.sql.Select(target + ".*").From(target)
		matchColumn string
	)
	switch assoc.Kind {
	case orm.AssociationHasOne, orm.AssociationHasMany:
		matchColumn = assoc.ForeignKey
		builder = builder.Where(target+"."+assoc.ForeignKey+" IN ("+placeholders+")", keys...)
	case orm.AssociationBelongsTo:
		matchColumn = assoc.TargetKey
		builder = builder.Where(target+"."+assoc.TargetKey+" IN ("+placeholders+")", keys...)
	case orm.AssociationManyToMany:
		matchColumn = pivotOwnerColumn
		pivot := assoc.JoinTable
		builder = m.orm.sql.Select(target+".*", pivot+"."+assoc.JoinForeignKey+" AS "+pivotOwnerColumn).
			From(target).
			Join("INNER", pivot, pivot+"."+assoc.JoinReferenceKey+" = "+target+"."+assoc.TargetKey).
			Where(pivot+"."+assoc.JoinForeignKey+" IN ("+placeholders+")", keys...)
	}

	rows, err := builder.Query(ctx)
	if err != nil {
		return nil, "", err
	}
	records, err := scanRecords(rows, typ)
	if err != nil {
		return nil, "", err
	}
	return records, matchColumn, nil
}

func (m *model) ownerValue(owner reflect.Value, column string) (any, bool) {
	if owner.Kind() == reflect.Map {
		v := owner.MapIndex(reflect.ValueOf(column))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	}
	return orm.Value(m.meta, owner.Addr().Interface(), column)
}

func recordValue(r record, column string) (any, bool) {
	if r.value.Kind() == reflect.Map {
		v, ok := r.extra[column]
		return v, ok
	}
	for _, f := range orm.StructFields(r.value.Type()) {
		if f.Column == column {
			fv := r.value.FieldByIndex(f.Index)
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					return nil, true
				}
				fv = fv.Elem()
			}
			return fv.Interface(), true
		}
	}
	v, ok := r.extra[column]
	return v, ok
}

// setRelation 写入关联结果：has_many/many_to_many 为切片，其余为单值
func (m *model) setRelation(owner reflect.Value, assoc *orm.AssociationMeta, matches []reflect.Value) error {
	many := assoc.Kind == orm.AssociationHasMany || assoc.Kind == orm.AssociationManyToMany

	if owner.Kind() == reflect.Map {
		key := reflect.ValueOf(orm.SnakeCase(assoc.Name))
		if many {
			list := make([]map[string]any, 0, len(matches))
			for _, v := range matches {
				list = append(list, v.Interface().(map[string]any))
			}
			owner.SetMapIndex(key, reflect.ValueOf(list))
			return nil
		}
		if len(matches) == 0 {
			owner.SetMapIndex(key, reflect.ValueOf((map[string]any)(nil)))
			return nil
		}
		owner.SetMapIndex(key, matches[0])
		return nil
	}

	field := owner.FieldByIndex(assoc.FieldIndex)
	switch field.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(field.Type(), 0, len(matches))
		for _, v := range matches {
			if field.Type().Elem().Kind() == reflect.Ptr {
				out = reflect.Append(out, v.Addr())
			} else {
				out = reflect.Append(out, v)
			}
		}
		field.Set(out)
	case reflect.Ptr:
		if len(matches) == 0 {
			field.Set(reflect.Zero(field.Type()))
		} else {
			field.Set(matches[0].Addr())
		}
	case reflect.Struct:
		if len(matches) == 0 {
			field.Set(reflect.Zero(field.Type()))
		} else {
			field.Set(matches[0])
		}
	default:
		return fmt.Errorf("%w: field for %q has kind %s", orm.ErrInvalidAssociation, assoc.Name, field.Kind())
	}
	return nil
}
