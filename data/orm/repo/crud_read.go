package repo

import (
	"context"
	ers "errors"
	"reflect"

	"repokit/data/orm"
	"repokit/errors"
)

// readQuery 读操作的查询：条件栈 → 范围钩子 → 默认返回列
func (r *Repo[T]) readQuery(columns []string) *Query {
	return r.prepare(r.current(), true).defaultSelect(columns)
}

// All 返回全部匹配记录
func (r *Repo[T]) All(ctx context.Context, columns ...string) ([]T, error) {
	return r.fetch(ctx, r.readQuery(columns))
}

// Get 同 All；查询本身不可变，可在派生仓储上继续链式调用
func (r *Repo[T]) Get(ctx context.Context, columns ...string) ([]T, error) {
	return r.fetch(ctx, r.readQuery(columns))
}

// First 返回第一条记录，无结果时返回 nil
func (r *Repo[T]) First(ctx context.Context, columns ...string) (*T, error) {
	return r.fetchFirst(ctx, r.readQuery(columns))
}

// Find 按主键查询，不存在时返回 nil, nil
func (r *Repo[T]) Find(ctx context.Context, id any, columns ...string) (*T, error) {
	return r.fetchFirst(ctx, r.readQuery(columns).Where(Equal{Field: r.qualifiedKey(), Value: id}))
}

// FindOrFail 按主键查询，不存在时返回 ErrCodeNotFound
func (r *Repo[T]) FindOrFail(ctx context.Context, id any, columns ...string) (*T, error) {
	rec, err := r.Find(ctx, id, columns...)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, r.notFound(id)
	}
	return rec, nil
}

// FindByField 按字段等值查询全部记录
func (r *Repo[T]) FindByField(ctx context.Context, field string, value any, columns ...string) ([]T, error) {
	return r.fetch(ctx, r.readQuery(columns).Where(Equal{Field: field, Value: value}))
}

// FindAllBy 同 FindByField
func (r *Repo[T]) FindAllBy(ctx context.Context, field string, value any, columns ...string) ([]T, error) {
	return r.FindByField(ctx, field, value, columns...)
}

// FindOneBy 按字段等值查询第一条记录，无结果时返回 nil
func (r *Repo[T]) FindOneBy(ctx context.Context, field string, value any, columns ...string) (*T, error) {
	return r.fetchFirst(ctx, r.readQuery(columns).Where(Equal{Field: field, Value: value}))
}

// FindWhere 按条件列表查询，or 为 true 时条件之间以 OR 连接
func (r *Repo[T]) FindWhere(ctx context.Context, filters []Filter, or bool, columns ...string) ([]T, error) {
	return r.fetch(ctx, r.readQuery(columns).WhereConditions(filters, or))
}

func (r *Repo[T]) FindWhereIn(ctx context.Context, field string, values []any, columns ...string) ([]T, error) {
	return r.fetch(ctx, r.readQuery(columns).Where(InList{Field: field, Values: values}))
}

func (r *Repo[T]) FindWhereNotIn(ctx context.Context, field string, values []any, columns ...string) ([]T, error) {
	return r.fetch(ctx, r.readQuery(columns).Where(InList{Field: field, Values: values, Not: true}))
}

func (r *Repo[T]) FindWhereBetween(ctx context.Context, field string, low, high any, columns ...string) ([]T, error) {
	return r.fetch(ctx, r.readQuery(columns).Where(Between{Field: field, Low: low, High: high}))
}

// Count 统计匹配记录数，filters 以 AND 追加
func (r *Repo[T]) Count(ctx context.Context, filters ...Filter) (int64, error) {
	return r.count(ctx, r.readQuery(nil).Where(filters...))
}

// Exists 是否存在匹配记录
func (r *Repo[T]) Exists(ctx context.Context, filters ...Filter) (bool, error) {
	n, err := r.Count(ctx, filters...)
	return n > 0, err
}

// Pluck 返回单列的值
func (r *Repo[T]) Pluck(ctx context.Context, column string) ([]any, error) {
	if err := checkField(column); err != nil {
		return nil, err
	}
	q := r.readQuery(nil)
	comp := r.compiler()
	opts, err := comp.compileRead(q)
	if err != nil {
		return nil, err
	}
	opts.Select = []string{column}
	opts.Preload = nil

	key, useCache := "", r.cacheable(q, opts, comp)
	if useCache {
		key, useCache = cacheKey("pluck", opts, nil)
	}
	if useCache {
		var cached []any
		if r.cacheGet(ctx, key, &cached) {
			return cached, nil
		}
	}

	var rows []map[string]any
	if err := r.model.Find(ctx, &rows, orm.WithOptions(opts)); err != nil {
		return nil, r.dbError(ctx, err, "pluck")
	}
	name := columnName(column)
	values := make([]any, len(rows))
	for i, row := range rows {
		values[i] = row[name]
	}
	if useCache {
		r.cacheSet(ctx, key, values)
	}
	return values, nil
}

// FirstOrCreate 按属性查找第一条记录，不存在时以这些属性创建
func (r *Repo[T]) FirstOrCreate(ctx context.Context, attrs Attributes) (*T, error) {
	rec, err := r.fetchFirst(ctx, r.readQuery(nil).Where(Map(attrs)...).SkipCache())
	if err != nil || rec != nil {
		return rec, err
	}
	return r.Create(ctx, attrs)
}

// FirstOrNew 按属性查找第一条记录，不存在时返回未保存的新记录
func (r *Repo[T]) FirstOrNew(ctx context.Context, attrs Attributes) (*T, error) {
	rec, err := r.fetchFirst(ctx, r.readQuery(nil).Where(Map(attrs)...))
	if err != nil || rec != nil {
		return rec, err
	}
	rec = r.newRecord()
	if err := orm.Assign(r.meta, rec, attrs); err != nil {
		return nil, assignError(err)
	}
	return rec, nil
}

// GetByCriteria 仅应用给定条件（忽略条件栈）后查询
func (r *Repo[T]) GetByCriteria(ctx context.Context, c ICriteria, columns ...string) ([]T, error) {
	q := r.current()
	if c != nil {
		if next := c.Apply(q, r); next != nil {
			q = next
		}
	}
	return r.fetch(ctx, q.applyScope().defaultSelect(columns))
}

// ColumnListing 返回数据表实际列名
func (r *Repo[T]) ColumnListing(ctx context.Context) ([]string, error) {
	if err := r.require(orm.CapabilityIntrospect, "column listing"); err != nil {
		return nil, err
	}
	cols, err := r.model.Columns(ctx)
	if err != nil {
		return nil, r.dbError(ctx, err, "column listing")
	}
	return cols, nil
}

func (r *Repo[T]) fetch(ctx context.Context, q *Query) ([]T, error) {
	comp := r.compiler()
	opts, err := comp.compileRead(q)
	if err != nil {
		return nil, err
	}
	if len(opts.Preload) > 0 {
		if err := r.require(orm.CapabilityPreload, "with"); err != nil {
			return nil, err
		}
	}

	key, useCache := "", r.cacheable(q, opts, comp)
	if useCache {
		key, useCache = cacheKey("get", opts, q)
	}
	if useCache {
		var cached []T
		if r.cacheGet(ctx, key, &cached) {
			return cached, nil
		}
	}

	rows := []T{}
	if err := r.model.Find(ctx, &rows, orm.WithOptions(opts)); err != nil {
		return nil, r.dbError(ctx, err, "find")
	}
	for i := range rows {
		r.applyVisibility(q, &rows[i])
	}
	if useCache {
		r.cacheSet(ctx, key, rows)
	}
	return rows, nil
}

func (r *Repo[T]) fetchFirst(ctx context.Context, q *Query) (*T, error) {
	comp := r.compiler()
	opts, err := comp.compileRead(q)
	if err != nil {
		return nil, err
	}
	if len(opts.Preload) > 0 {
		if err := r.require(orm.CapabilityPreload, "with"); err != nil {
			return nil, err
		}
	}
	opts.Limit = 1

	key, useCache := "", r.cacheable(q, opts, comp)
	if useCache {
		key, useCache = cacheKey("first", opts, q)
	}
	if useCache {
		var cached *T
		if r.cacheGet(ctx, key, &cached) {
			return cached, nil
		}
	}

	rec := r.newRecord()
	err = r.model.First(ctx, rec, orm.WithOptions(opts))
	switch {
	case ers.Is(err, orm.ErrNotFound):
		rec = nil
	case err != nil:
		return nil, r.dbError(ctx, err, "first")
	default:
		r.applyVisibility(q, rec)
	}
	if useCache {
		r.cacheSet(ctx, key, rec)
	}
	return rec, nil
}

func (r *Repo[T]) count(ctx context.Context, q *Query) (int64, error) {
	comp := r.compiler()
	opts, err := comp.compileRead(q)
	if err != nil {
		return 0, err
	}
	opts.Select, opts.OrderBy, opts.Preload = nil, nil, nil
	opts.Limit, opts.Offset = 0, 0

	key, useCache := "", r.cacheable(q, opts, comp)
	if useCache {
		key, useCache = cacheKey("count", opts, nil)
	}
	if useCache {
		var cached int64
		if r.cacheGet(ctx, key, &cached) {
			return cached, nil
		}
	}

	n, err := r.model.Count(ctx, orm.WithOptions(opts))
	if err != nil {
		return 0, r.dbError(ctx, err, "count")
	}
	if useCache {
		r.cacheSet(ctx, key, n)
	}
	return n, nil
}

func (r *Repo[T]) newRecord() *T {
	rec := new(T)
	if m, ok := any(rec).(*map[string]any); ok {
		*m = map[string]any{}
	}
	return rec
}

func (r *Repo[T]) notFound(id any) error {
	return errors.NewErrorf(errors.ErrCodeNotFound, "%s 记录不存在", r.meta.Table).
		WithContext("id", id)
}

// applyVisibility 按 Hidden / Visible 清除结构体字段或删除 map 键
func (r *Repo[T]) applyVisibility(q *Query, rec *T) {
	if len(q.hidden) == 0 && len(q.visible) == 0 {
		return
	}
	keep := func(col string) bool {
		if contains(q.hidden, col) {
			return false
		}
		return len(q.visible) == 0 || contains(q.visible, col)
	}

	if m, ok := any(rec).(*map[string]any); ok {
		for k := range *m {
			if !keep(k) {
				delete(*m, k)
			}
		}
		return
	}
	rv := reflect.ValueOf(rec).Elem()
	for _, f := range r.meta.Fields {
		if !keep(f.Column) {
			fv := rv.FieldByIndex(f.Index)
			fv.Set(reflect.Zero(fv.Type()))
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
