package orm

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// ITableNamer 模型可实现该接口声明表名
type ITableNamer interface {
	TableName() string
}

// IAssociated 模型可实现该接口声明关联
type IAssociated interface {
	Associations() []AssociationMeta
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	dynamicMap = reflect.TypeOf(map[string]any{})
)

// relationField 非标量的导出字段，可承载预加载结果
type relationField struct {
	name  string
	index []int
	elem  reflect.Type
}

type typeInfo struct {
	fields    []FieldMeta
	relations []relationField
}

var typeCache sync.Map // reflect.Type -> *typeInfo

// ParseModel 解析模型元信息。
//
// model 为结构体（或其指针）或 map[string]any；table 为空时依次尝试
// TableName() 与类型名的 snake_case 复数形式。assocs 与模型 Associations()
// 声明的关联合并后解析默认键。
func ParseModel(model any, table string, assocs ...AssociationMeta) (*ModelMeta, error) {
	t := reflect.TypeOf(model)
	if t == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	meta := &ModelMeta{Model: model, Table: table, Type: t}
	switch {
	case t == dynamicMap:
		meta.Dynamic = true
		if meta.Table == "" {
			return nil, fmt.Errorf("%w: map records require an explicit table", ErrInvalidModel)
		}
	case t.Kind() == reflect.Struct:
		info := structInfo(t)
		meta.Fields = append([]FieldMeta(nil), info.fields...)
		if meta.Table == "" {
			meta.Table = tableNameOf(t)
		}
	default:
		return nil, fmt.Errorf("%w: %s is neither a struct nor map[string]any", ErrInvalidModel, t)
	}

	if _, ok := meta.Field("deleted_at"); ok {
		meta.SoftDeleteColumn = "deleted_at"
	}

	declared := assocs
	if a, ok := reflect.New(t).Interface().(IAssociated); ok {
		declared = append(a.Associations(), assocs...)
	}
	for _, a := range declared {
		resolved, err := resolveAssociation(meta, a)
		if err != nil {
			return nil, err
		}
		meta.Associations = append(meta.Associations, resolved)
	}
	return meta, nil
}

// StructFields 返回结构体类型的列映射（带缓存）
func StructFields(t reflect.Type) []FieldMeta {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return structInfo(t).fields
}

func structInfo(t reflect.Type) *typeInfo {
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeInfo)
	}
	info := &typeInfo{}
	seen := make(map[string]int)

	var walk func(reflect.Type, []int)
	walk = func(cur reflect.Type, prefix []int) {
		for i := 0; i < cur.NumField(); i++ {
			f := cur.Field(i)
			if !f.IsExported() {
				continue
			}
			index := append(append([]int(nil), prefix...), i)

			if f.Tag.Get("gorm") == "-" || f.Tag.Get("db") == "-" {
				continue
			}
			if f.Anonymous && f.Type.Kind() == reflect.Struct && !isScalarType(f.Type) {
				walk(f.Type, index)
				continue
			}
			if !isScalarType(f.Type) {
				if elem := relationElem(f.Type); elem != nil {
					info.relations = append(info.relations, relationField{name: f.Name, index: index, elem: elem})
				}
				continue
			}

			fm := parseFieldTag(f)
			fm.Index = index
			fm.Type = f.Type
			// 同名列以最内层定义为准
			if pos, dup := seen[fm.Column]; dup {
				info.fields[pos] = fm
				continue
			}
			seen[fm.Column] = len(info.fields)
			info.fields = append(info.fields, fm)
		}
	}
	walk(t, nil)

	actual, _ := typeCache.LoadOrStore(t, info)
	return actual.(*typeInfo)
}

func parseFieldTag(f reflect.StructField) FieldMeta {
	fm := FieldMeta{Name: f.Name, Tags: map[string]string{}}
	if f.Type.Kind() == reflect.Ptr {
		fm.Nullable = true
	}

	if gormTag := f.Tag.Get("gorm"); gormTag != "" {
		fm.Tags["gorm"] = gormTag
		for _, part := range strings.Split(gormTag, ";") {
			part = strings.TrimSpace(part)
			key, value, _ := strings.Cut(part, ":")
			switch strings.ToLower(key) {
			case "column":
				fm.Column = value
			case "primarykey", "primary_key":
				fm.PrimaryKey = true
			case "autoincrement":
				fm.AutoIncrement = true
			case "unique":
				fm.Unique = true
			case "default":
				fm.DefaultValue = value
			case "index", "uniqueindex":
				fm.Indexes = append(fm.Indexes, value)
			case "->":
				fm.ReadOnly = true
			}
		}
	}
	if fm.Column == "" {
		if dbTag := f.Tag.Get("db"); dbTag != "" {
			fm.Column = strings.Split(dbTag, ",")[0]
		} else if jsonTag := f.Tag.Get("json"); jsonTag != "" && jsonTag != "-" {
			fm.Column = strings.Split(jsonTag, ",")[0]
		}
	}
	if fm.Column == "" {
		fm.Column = toSnakeCase(f.Name)
	}
	return fm
}

func isScalarType(t reflect.Type) bool {
	if t.Implements(valuerType) || reflect.PointerTo(t).Implements(valuerType) {
		return true
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	default:
		return false
	}
}

// relationElem 返回关联字段的目标结构体类型：T、*T、[]T、[]*T
func relationElem(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		return t
	}
	return nil
}

func tableNameOf(t reflect.Type) string {
	if n, ok := reflect.New(t).Interface().(ITableNamer); ok {
		if name := n.TableName(); name != "" {
			return name
		}
	}
	return toSnakeCase(t.Name()) + "s"
}

func resolveAssociation(owner *ModelMeta, a AssociationMeta) (AssociationMeta, error) {
	if a.Name == "" {
		return a, fmt.Errorf("%w: empty name", ErrInvalidAssociation)
	}
	switch a.Kind {
	case AssociationHasOne, AssociationHasMany, AssociationBelongsTo, AssociationManyToMany:
	default:
		return a, fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidAssociation, a.Name, a.Kind)
	}

	if !owner.Dynamic {
		for _, rf := range structInfo(owner.Type).relations {
			if strings.EqualFold(rf.name, a.Name) {
				a.FieldIndex = rf.index
				a.TargetType = rf.elem
				break
			}
		}
	}
	if a.Target != nil {
		tt := reflect.TypeOf(a.Target)
		for tt.Kind() == reflect.Ptr {
			tt = tt.Elem()
		}
		a.TargetType = tt
	}
	if a.TargetTable == "" {
		if a.TargetType == nil {
			return a, fmt.Errorf("%w: %s needs TargetTable or Target", ErrInvalidAssociation, a.Name)
		}
		a.TargetTable = tableNameOf(a.TargetType)
	}

	ownerKey := ownerKeyPrefix(owner) + "_id"
	targetPK := "id"
	if a.TargetType != nil && a.TargetType.Kind() == reflect.Struct {
		for _, f := range StructFields(a.TargetType) {
			if f.PrimaryKey {
				targetPK = f.Column
				break
			}
		}
	}

	switch a.Kind {
	case AssociationHasOne, AssociationHasMany:
		a.ForeignKey = firstNonEmpty(a.ForeignKey, ownerKey)
		a.ReferenceKey = firstNonEmpty(a.ReferenceKey, owner.PrimaryKeyColumn())
	case AssociationBelongsTo:
		a.ForeignKey = firstNonEmpty(a.ForeignKey, toSnakeCase(a.Name)+"_id")
		a.TargetKey = firstNonEmpty(a.TargetKey, targetPK)
	case AssociationManyToMany:
		if a.JoinTable == "" {
			return a, fmt.Errorf("%w: %s requires JoinTable", ErrInvalidAssociation, a.Name)
		}
		targetPrefix := strings.TrimSuffix(a.TargetTable, "s")
		if a.TargetType != nil {
			targetPrefix = toSnakeCase(a.TargetType.Name())
		}
		a.JoinForeignKey = firstNonEmpty(a.JoinForeignKey, ownerKey)
		a.JoinReferenceKey = firstNonEmpty(a.JoinReferenceKey, targetPrefix+"_id")
		a.ReferenceKey = firstNonEmpty(a.ReferenceKey, owner.PrimaryKeyColumn())
		a.TargetKey = firstNonEmpty(a.TargetKey, targetPK)
	}
	return a, nil
}

func ownerKeyPrefix(owner *ModelMeta) string {
	if owner.Dynamic || owner.Type == nil || owner.Type.Name() == "" {
		return strings.TrimSuffix(owner.Table, "s")
	}
	return toSnakeCase(owner.Type.Name())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// toSnakeCase 将 UserID、CreatedAt 转为 user_id、created_at
func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z' || runes[i-1] >= '0' && runes[i-1] <= '9'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			prevUpper := runes[i-1] >= 'A' && runes[i-1] <= 'Z'
			if prevLower || (prevUpper && nextLower) {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeCase 导出的 snake_case 转换
func SnakeCase(s string) string { return toSnakeCase(s) }
