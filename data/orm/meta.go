package orm

import (
	"reflect"
	"strings"
)

// AssociationKind 表示关联类型。
type AssociationKind string

const (
	AssociationBelongsTo  AssociationKind = "belongs_to"
	AssociationHasOne     AssociationKind = "has_one"
	AssociationHasMany    AssociationKind = "has_many"
	AssociationManyToMany AssociationKind = "many_to_many"
)

// AssociationMeta 描述模型关联元信息。
//
// 各类型的键含义：
//   - has_one / has_many：目标表 ForeignKey 指向本表 ReferenceKey（默认本表主键）
//   - belongs_to：本表 ForeignKey 指向目标表 TargetKey（默认目标主键 id）
//   - many_to_many：中间表 JoinTable 的 JoinForeignKey 指向本表 ReferenceKey，
//     JoinReferenceKey 指向目标表 TargetKey
type AssociationMeta struct {
	Name             string
	Kind             AssociationKind
	Target           any
	TargetTable      string
	JoinTable        string
	ForeignKey       string
	ReferenceKey     string
	TargetKey        string
	JoinForeignKey   string
	JoinReferenceKey string
	Tags             map[string]string

	// FieldIndex 承载预加载结果的结构体字段路径（由 ParseModel 解析）
	FieldIndex []int
	// TargetType 目标记录类型（结构体，非指针）
	TargetType reflect.Type
}

// Matches 判断关联名是否匹配（大小写不敏感，兼容 snake_case 写法）
func (a *AssociationMeta) Matches(name string) bool {
	return strings.EqualFold(a.Name, name) || strings.EqualFold(toSnakeCase(a.Name), name)
}

// FieldMeta 描述字段元信息。
type FieldMeta struct {
	Name          string
	Column        string
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
	Unique        bool
	Indexes       []string
	DefaultValue  string
	// ReadOnly 只读列（gorm:"->"），如 withCount 产生的统计列，不参与写入
	ReadOnly bool
	Tags     map[string]string

	// Index 结构体字段路径（reflect.Value.FieldByIndex）
	Index []int
	Type  reflect.Type
}

// ModelMeta 描述模型级别元信息。
// Tags 可用于存放原始 orm/gorm 等标签内容，由适配器解析。
type ModelMeta struct {
	Model        any
	Table        string
	Fields       []FieldMeta
	Associations []AssociationMeta
	Tags         map[string]string

	// SoftDeleteColumn 软删除列，空表示物理删除
	SoftDeleteColumn string
	// Dynamic 为 true 时记录类型为 map[string]any，列集合来自 schema 内省
	Dynamic bool
	// Type 记录类型（结构体或 map[string]any）
	Type reflect.Type
}

// Tag 返回模型级别的标签内容。
func (m *ModelMeta) Tag(key string) string {
	if m == nil || m.Tags == nil {
		return ""
	}
	return m.Tags[key]
}

// PrimaryKey 返回主键字段；未声明时回退到 id 列。
func (m *ModelMeta) PrimaryKey() *FieldMeta {
	if m == nil {
		return nil
	}
	for i := range m.Fields {
		if m.Fields[i].PrimaryKey {
			return &m.Fields[i]
		}
	}
	if f, ok := m.Field("id"); ok {
		return f
	}
	return nil
}

// PrimaryKeyColumn 主键列名，默认 id
func (m *ModelMeta) PrimaryKeyColumn() string {
	if pk := m.PrimaryKey(); pk != nil {
		return pk.Column
	}
	return "id"
}

// Field 按列名查找字段
func (m *ModelMeta) Field(column string) (*FieldMeta, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Fields {
		if m.Fields[i].Column == column {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// HasColumn 判断模型是否声明了该列；动态模型总是返回 true
func (m *ModelMeta) HasColumn(column string) bool {
	if m == nil {
		return false
	}
	if m.Dynamic {
		return true
	}
	_, ok := m.Field(column)
	return ok
}

// Columns 返回声明的列名（按字段顺序）
func (m *ModelMeta) Columns() []string {
	if m == nil {
		return nil
	}
	cols := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Association 按名称查找关联
func (m *ModelMeta) Association(name string) (*AssociationMeta, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Associations {
		if m.Associations[i].Matches(name) {
			return &m.Associations[i], true
		}
	}
	return nil, false
}
