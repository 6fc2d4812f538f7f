// Package repo 提供基于 repokit/data/orm 的通用仓储。
//
// 查询以不可变的 *Query 描述，读操作依次经过条件栈、范围钩子与编译后交给适配器执行；
// 链式修饰方法返回携带新查询的派生仓储，原仓储不受影响。
package repo

import (
	"context"
	"reflect"
	"time"

	"repokit/data/db/dialect"
	"repokit/data/orm"
	"repokit/errors"
	"repokit/logging"
	"repokit/validation"
)

// Repo 通用仓储，T 为结构体或 map[string]any。
type Repo[T any] struct {
	orm      orm.IOrm
	model    orm.IModel
	meta     *orm.ModelMeta
	dialect  dialect.Dialect
	criteria *CriteriaStack
	pending  *Query

	logger    logging.Logger
	cache     IResultCache
	cacheTTL  time.Duration
	publisher IEventPublisher
	clock     func() time.Time

	tx *txState
}

type txState struct {
	events []Event
	dirty  bool
}

// NewRepo 创建仓储。
//
// T 不是结构体或 map[string]any、表名非法或主键/软删除列未声明时返回 ErrCodeConfiguration。
func NewRepo[T any](ormEngine orm.IOrm, table string, opts ...Option) (*Repo[T], error) {
	if ormEngine == nil {
		return nil, errors.NewError(errors.ErrCodeConfiguration, "仓储缺少 ORM 适配器")
	}
	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() == reflect.Ptr {
		return nil, errors.NewErrorf(errors.ErrCodeConfiguration, "记录类型 %s 不能是指针", t)
	}
	meta, err := orm.ParseModel(new(T), table, cfg.associations...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, "记录类型不是合法的存储实体")
	}
	if err := validation.ValidateIdentifier(meta.Table, "表"); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, "仓储表名非法")
	}
	if err := applyKeyOptions(meta, cfg); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.ComponentLogger("repo")
	}
	clock := cfg.clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}

	r := &Repo[T]{
		orm:       ormEngine,
		model:     ormEngine.Model(meta),
		meta:      meta,
		dialect:   dialect.FromDatabase(ormEngine.Database()),
		criteria:  NewCriteriaStack(cfg.criteria...),
		logger:    logger.WithFields(logging.String("table", meta.Table)),
		cache:     cfg.cache,
		cacheTTL:  cfg.cacheTTL,
		publisher: cfg.publisher,
		clock:     clock,
	}
	for _, boot := range cfg.boot {
		boot(r.criteria)
	}
	return r, nil
}

func applyKeyOptions(meta *orm.ModelMeta, cfg *config) error {
	if pk := cfg.primaryKey; pk != "" {
		if err := validation.ValidateIdentifier(pk, "主键"); err != nil {
			return errors.WrapError(err, errors.ErrCodeConfiguration, "主键列非法")
		}
		if meta.Dynamic {
			meta.Fields = append(meta.Fields, orm.FieldMeta{Name: pk, Column: pk, PrimaryKey: true})
		} else {
			if _, ok := meta.Field(pk); !ok {
				return errors.NewErrorf(errors.ErrCodeConfiguration, "%s 未声明主键列 %s", meta.Table, pk)
			}
			for i := range meta.Fields {
				meta.Fields[i].PrimaryKey = meta.Fields[i].Column == pk
			}
		}
	}
	if cfg.softDelete != nil {
		col := *cfg.softDelete
		if col != "" && !meta.HasColumn(col) {
			return errors.NewErrorf(errors.ErrCodeConfiguration, "%s 未声明软删除列 %s", meta.Table, col)
		}
		meta.SoftDeleteColumn = col
	}
	return nil
}

func (r *Repo[T]) Table() string            { return r.meta.Table }
func (r *Repo[T]) PrimaryKey() string       { return r.meta.PrimaryKeyColumn() }
func (r *Repo[T]) Meta() *orm.ModelMeta     { return r.meta }
func (r *Repo[T]) Dialect() dialect.Dialect { return r.dialect }
func (r *Repo[T]) Criteria() *CriteriaStack { return r.criteria }
func (r *Repo[T]) Logger() logging.Logger   { return r.logger }

// Model 暴露底层模型
func (r *Repo[T]) Model() orm.IModel { return r.model }

// Orm 返回绑定的 ORM 引擎。
func (r *Repo[T]) Orm() orm.IOrm { return r.orm }

// Query 返回当前仓储携带的待执行查询
func (r *Repo[T]) Query() *Query { return r.current() }

func (r *Repo[T]) current() *Query {
	if r.pending == nil {
		return NewQuery()
	}
	return r.pending
}

func (r *Repo[T]) derive(q *Query) *Repo[T] {
	c := *r
	c.pending = q
	return &c
}

// require 适配器模型不支持 cp 时返回 ErrCodeUnsupported
func (r *Repo[T]) require(cp orm.Capability, op string) error {
	if r.model.Capabilities().Supports(cp) {
		return nil
	}
	return errors.NewErrorf(errors.ErrCodeUnsupported, "%s %s: 适配器不支持 %s", r.meta.Table, op, cp)
}

// Using 以显式查询派生仓储
func (r *Repo[T]) Using(q *Query) *Repo[T] { return r.derive(q) }

// prepare 依次应用条件栈（仅读操作）与范围钩子。
//
// 每一步之前先把已有条件折叠成组，后续以 AND 追加的条件不会被前面的 OR 绕过。
func (r *Repo[T]) prepare(q *Query, withCriteria bool) *Query {
	q = q.grouped()
	if withCriteria {
		q = r.criteria.Apply(q, r).grouped()
	}
	return q.applyScope().grouped()
}

// writeQuery 写操作的基础查询：不含返回列、可见性、预加载、计数与连接，避免回写未加载的字段
func (r *Repo[T]) writeQuery() *Query {
	return r.prepare(r.current(), false).forWrite()
}

func (r *Repo[T]) compiler() *compiler {
	return &compiler{
		table:   r.meta.Table,
		pk:      r.PrimaryKey(),
		meta:    r.meta,
		dialect: r.dialect,
	}
}

func (r *Repo[T]) qualifiedKey() string {
	return r.meta.Table + "." + r.PrimaryKey()
}

func (r *Repo[T]) now() time.Time { return r.clock() }

// dbError 规范化适配器错误；唯一键冲突映射为 ErrCodeDuplicate
func (r *Repo[T]) dbError(ctx context.Context, err error, operation string) error {
	return errors.WrapDatabaseError(ctx, errors.Normalize(err), operation, r.dialect)
}

// PushCriteria 压入条件（同类别替换）
func (r *Repo[T]) PushCriteria(c ICriteria) *Repo[T] {
	r.criteria.Push(c)
	return r
}

// PopCriteria 移除指定类别条件
func (r *Repo[T]) PopCriteria(kind CriteriaKind) bool { return r.criteria.Pop(kind) }

// SkipCriteria 设置是否跳过条件栈
func (r *Repo[T]) SkipCriteria(status bool) *Repo[T] {
	r.criteria.Skip(status)
	return r
}

// GetCriteria 当前条件（按应用顺序）
func (r *Repo[T]) GetCriteria() []ICriteria { return r.criteria.Items() }

// ResetCriteria 清空条件栈并恢复应用
func (r *Repo[T]) ResetCriteria() *Repo[T] {
	r.criteria.Reset()
	return r
}

// 以下链式修饰均返回携带新查询的派生仓储，语义见 Query 同名方法。

func (r *Repo[T]) Where(filters ...Filter) *Repo[T] {
	return r.derive(r.current().Where(filters...))
}

func (r *Repo[T]) OrWhere(filters ...Filter) *Repo[T] {
	return r.derive(r.current().OrWhere(filters...))
}

func (r *Repo[T]) WhereConditions(filters []Filter, or bool) *Repo[T] {
	return r.derive(r.current().WhereConditions(filters, or))
}

func (r *Repo[T]) Join(specs ...JoinSpec) *Repo[T] {
	return r.derive(r.current().Join(specs...))
}

func (r *Repo[T]) JoinTuples(tuples ...[]string) *Repo[T] {
	return r.derive(r.current().JoinTuples(tuples...))
}

func (r *Repo[T]) Select(columns ...string) *Repo[T] {
	return r.derive(r.current().Select(columns...))
}

func (r *Repo[T]) Has(relation string, opAndCount ...any) *Repo[T] {
	return r.derive(r.current().Has(relation, opAndCount...))
}

func (r *Repo[T]) DoesntHave(relation string) *Repo[T] {
	return r.derive(r.current().DoesntHave(relation))
}

func (r *Repo[T]) WhereHas(relation string, where Predicate) *Repo[T] {
	return r.derive(r.current().WhereHas(relation, where))
}

func (r *Repo[T]) With(relations ...string) *Repo[T] {
	return r.derive(r.current().With(relations...))
}

func (r *Repo[T]) WithCount(relations ...string) *Repo[T] {
	return r.derive(r.current().WithCount(relations...))
}

func (r *Repo[T]) Hidden(columns ...string) *Repo[T] {
	return r.derive(r.current().Hidden(columns...))
}

func (r *Repo[T]) Visible(columns ...string) *Repo[T] {
	return r.derive(r.current().Visible(columns...))
}

func (r *Repo[T]) OrderBy(column string, direction ...string) *Repo[T] {
	return r.derive(r.current().OrderBy(column, direction...))
}

func (r *Repo[T]) InRandomOrder() *Repo[T] {
	return r.derive(r.current().InRandomOrder())
}

func (r *Repo[T]) GroupBy(columns ...string) *Repo[T] {
	return r.derive(r.current().GroupBy(columns...))
}

func (r *Repo[T]) Skip(n int) *Repo[T] {
	return r.derive(r.current().Skip(n))
}

func (r *Repo[T]) Take(n int) *Repo[T] {
	return r.derive(r.current().Take(n))
}

func (r *Repo[T]) Limit(n int) *Repo[T] {
	return r.derive(r.current().Limit(n))
}

func (r *Repo[T]) ScopeQuery(fn ScopeFunc) *Repo[T] {
	return r.derive(r.current().ScopeQuery(fn))
}

func (r *Repo[T]) ResetScope() *Repo[T] {
	return r.derive(r.current().ResetScope())
}

func (r *Repo[T]) WithTrashed() *Repo[T] {
	return r.derive(r.current().WithTrashed())
}

func (r *Repo[T]) OnlyTrashed() *Repo[T] {
	return r.derive(r.current().OnlyTrashed())
}

func (r *Repo[T]) SkipCache() *Repo[T] {
	return r.derive(r.current().SkipCache())
}
