package orm

import (
	"context"
	"database/sql"

	"repokit/data/db"
)

// IOrm 表示 ORM 适配器入口。
// 仅定义接口，具体实现由业务侧选择并以适配器形式注入。
type IOrm interface {
	// Capabilities 返回适配器支持的能力集合。
	Capabilities() Capabilities
	// Model 返回指定模型的操作入口。
	Model(meta *ModelMeta) IModel
	// Begin 开启事务会话。
	Begin(ctx context.Context) (IOrmSession, error)
	// BeginTx 开启带选项的事务会话。
	BeginTx(ctx context.Context, opts *sql.TxOptions) (IOrmSession, error)
	// Database 返回适配器绑定的通用数据库（可选，可为 nil）。
	Database() db.IDatabase
	// Raw 返回底层引擎实例，便于特殊场景透传。
	Raw() any
}

// IOrmSession 表示事务会话。
type IOrmSession interface {
	IOrm
	Commit() error
	Rollback() error
}

// IModel 封装模型级别的基础操作。
//
// dest 支持 *T / *[]T（T 为结构体）以及 *map[string]any / *[]map[string]any。
type IModel interface {
	Meta() *ModelMeta
	Capabilities() Capabilities

	// First 查询单条记录，无结果时返回 ErrNotFound。
	First(ctx context.Context, dest any, opts ...QueryOption) error
	Find(ctx context.Context, dest any, opts ...QueryOption) error
	// Count 统计数量，忽略 Select/OrderBy/Limit/Offset。
	Count(ctx context.Context, opts ...QueryOption) (int64, error)

	// Create 插入记录并回写数据库生成的主键。
	Create(ctx context.Context, entities ...any) error
	// Save 以实体全部非主键列执行更新，未给出条件时按主键定位。
	Save(ctx context.Context, entity any, opts ...QueryOption) (int64, error)
	UpdateValues(ctx context.Context, values map[string]any, opts ...QueryOption) (int64, error)
	Delete(ctx context.Context, opts ...QueryOption) (int64, error)

	// Columns 返回数据表的实际列名（schema 内省）。
	Columns(ctx context.Context) ([]string, error)
}
