package repo

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"repokit/data/orm"
	"repokit/errors"
	"repokit/logging"
	"repokit/validation"
)

const (
	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
)

// Create 以属性创建记录，回写数据库生成的主键
func (r *Repo[T]) Create(ctx context.Context, attrs Attributes) (*T, error) {
	rec := r.newRecord()
	if err := orm.Assign(r.meta, rec, attrs); err != nil {
		return nil, assignError(err)
	}
	if err := r.insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Add 新增实体
func (r *Repo[T]) Add(ctx context.Context, entity *T) error {
	if entity == nil {
		return invalidInput("add: nil entity")
	}
	return r.insert(ctx, entity)
}

// Save 属性携带已存在的主键时更新该记录，否则新建
func (r *Repo[T]) Save(ctx context.Context, attrs Attributes) (*T, error) {
	pk := r.PrimaryKey()
	if id, ok := attrs[pk]; ok && !orm.IsZero(id) {
		q := r.writeQuery().Where(Equal{Field: r.qualifiedKey(), Value: id}).SkipCache()
		existing, err := r.fetchFirst(ctx, q)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := r.assignExcept(existing, attrs, pk); err != nil {
				return nil, err
			}
			if err := r.persist(ctx, existing, id); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}
	return r.Create(ctx, attrs)
}

// SaveOne 同 Save，仅返回是否成功
func (r *Repo[T]) SaveOne(ctx context.Context, attrs Attributes) (bool, error) {
	if _, err := r.Save(ctx, attrs); err != nil {
		return false, err
	}
	return true, nil
}

// Update 按主键更新，记录不存在时返回 ErrCodeNotFound
func (r *Repo[T]) Update(ctx context.Context, attrs Attributes, id any) (*T, error) {
	q := r.writeQuery().Where(Equal{Field: r.qualifiedKey(), Value: id}).SkipCache()
	rec, err := r.fetchFirst(ctx, q)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, r.notFound(id)
	}
	if err := r.assignExcept(rec, attrs, r.PrimaryKey()); err != nil {
		return nil, err
	}
	if err := r.persist(ctx, rec, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateBy 批量更新 field = value 的记录，不读取记录
func (r *Repo[T]) UpdateBy(ctx context.Context, field string, value any, attrs Attributes) (int64, error) {
	if len(attrs) == 0 {
		return 0, nil
	}
	for col := range attrs {
		if !isAllowedField(r.meta, col) {
			return 0, invalidInput("%s has no column %q", r.meta.Table, col)
		}
	}
	q := r.writeQuery().Where(Equal{Field: field, Value: value})
	cond, err := r.compiler().compileWhere(q)
	if err != nil {
		return 0, err
	}

	values := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		values[k] = v
	}
	if _, ok := values[updatedAtColumn]; !ok && r.hasDeclaredColumn(updatedAtColumn) {
		values[updatedAtColumn] = r.now()
	}

	n, err := r.model.UpdateValues(ctx, values, orm.WithWhere(cond.Expr, cond.Args...))
	if err != nil {
		return 0, r.dbError(ctx, err, "update by")
	}
	if n > 0 {
		r.afterWrite(ctx, r.newEvent(EventUpdated, nil, values, n))
	}
	return n, nil
}

// UpdateOrCreate 按 attributes 查找：存在则以 values 更新，否则以两者合并创建
func (r *Repo[T]) UpdateOrCreate(ctx context.Context, attributes, values Attributes) (*T, error) {
	q := r.writeQuery().Where(Map(attributes)...).SkipCache()
	rec, err := r.fetchFirst(ctx, q)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		merged := make(Attributes, len(attributes)+len(values))
		for k, v := range attributes {
			merged[k] = v
		}
		for k, v := range values {
			merged[k] = v
		}
		return r.Create(ctx, merged)
	}

	pk := r.PrimaryKey()
	id, _ := orm.Value(r.meta, rec, pk)
	if err := r.assignExcept(rec, values, pk); err != nil {
		return nil, err
	}
	if err := r.persist(ctx, rec, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete 按主键删除：模型有软删除列且 force 为 false 时标记删除，否则物理删除
func (r *Repo[T]) Delete(ctx context.Context, id any, force bool) (int64, error) {
	q := r.writeQuery().Where(Equal{Field: r.qualifiedKey(), Value: id})
	return r.remove(ctx, q, force, id)
}

// DeleteWhere 删除匹配条件的记录，条件不能为空
func (r *Repo[T]) DeleteWhere(ctx context.Context, filters []Filter, force bool) (int64, error) {
	if len(filters) == 0 {
		return 0, invalidInput("delete where: no conditions given")
	}
	q := r.writeQuery().Where(filters...)
	return r.remove(ctx, q, force, nil)
}

// Restore 恢复软删除的记录
func (r *Repo[T]) Restore(ctx context.Context, id any) (int64, error) {
	col := r.meta.SoftDeleteColumn
	if col == "" {
		return 0, errors.NewErrorf(errors.ErrCodeUnsupported, "%s 未启用软删除", r.meta.Table)
	}
	q := r.writeQuery().OnlyTrashed().Where(Equal{Field: r.qualifiedKey(), Value: id})
	cond, err := r.compiler().compileWhere(q)
	if err != nil {
		return 0, err
	}
	n, err := r.model.UpdateValues(ctx, map[string]any{col: nil}, orm.WithWhere(cond.Expr, cond.Args...))
	if err != nil {
		return 0, r.dbError(ctx, err, "restore")
	}
	if n > 0 {
		r.afterWrite(ctx, r.newEvent(EventRestored, id, nil, n))
	}
	return n, nil
}

// Transaction 在事务中执行 fn；fn 返回错误或 panic 时回滚。
//
// 事务内的缓存失效与事件发布延迟到提交成功之后；已处于事务中时直接复用当前事务。
func (r *Repo[T]) Transaction(ctx context.Context, fn func(tx *Repo[T]) error) (err error) {
	if r.tx != nil {
		return fn(r)
	}
	if !r.orm.Capabilities().Supports(orm.CapabilityTransaction) {
		return errors.NewErrorf(errors.ErrCodeUnsupported, "%s: 适配器不支持事务", r.meta.Table)
	}
	sess, err := r.orm.Begin(ctx)
	if err != nil {
		return r.dbError(ctx, err, "begin")
	}

	txRepo := *r
	txRepo.orm = sess
	txRepo.model = sess.Model(r.meta)
	txRepo.tx = &txState{}

	defer func() {
		if p := recover(); p != nil {
			_ = sess.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txRepo); err != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			r.logger.Warn(ctx, "事务回滚失败", logging.Error(rbErr))
		}
		return err
	}
	if err := sess.Commit(); err != nil {
		return r.dbError(ctx, err, "commit")
	}

	if txRepo.tx.dirty {
		r.invalidate(ctx)
	}
	for _, event := range txRepo.tx.events {
		r.publish(ctx, event)
	}
	return nil
}

func (r *Repo[T]) insert(ctx context.Context, rec *T) error {
	if err := validation.ValidateEntity(rec); err != nil {
		return err
	}
	if err := r.touch(rec, true); err != nil {
		return err
	}
	if err := r.ensureKey(rec); err != nil {
		return err
	}
	if err := r.model.Create(ctx, rec); err != nil {
		return r.dbError(ctx, err, "create")
	}
	key, _ := orm.Value(r.meta, rec, r.PrimaryKey())
	r.logger.Debug(ctx, "记录已创建", logging.Any("key", key))
	r.afterWrite(ctx, r.newEvent(EventCreated, key, rec, 1))
	return nil
}

// persist 以记录当前值更新主键为 id 的行
func (r *Repo[T]) persist(ctx context.Context, rec *T, id any) error {
	if err := validation.ValidateEntity(rec); err != nil {
		return err
	}
	if err := r.touch(rec, false); err != nil {
		return err
	}
	n, err := r.model.Save(ctx, rec, orm.WithWhere(r.PrimaryKey()+" = ?", id))
	if err != nil {
		return r.dbError(ctx, err, "save")
	}
	r.afterWrite(ctx, r.newEvent(EventUpdated, id, rec, n))
	return nil
}

func (r *Repo[T]) assignExcept(rec *T, attrs Attributes, skip string) error {
	filtered := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k != skip {
			filtered[k] = v
		}
	}
	if err := orm.Assign(r.meta, rec, filtered); err != nil {
		return assignError(err)
	}
	return nil
}

// touch 维护 created_at / updated_at（仅结构体记录中声明的列）
func (r *Repo[T]) touch(rec *T, creating bool) error {
	if r.meta.Dynamic {
		return nil
	}
	now := r.now()
	attrs := map[string]any{}
	if creating && r.hasDeclaredColumn(createdAtColumn) {
		if v, _ := orm.Value(r.meta, rec, createdAtColumn); orm.IsZero(v) {
			attrs[createdAtColumn] = now
		}
	}
	if r.hasDeclaredColumn(updatedAtColumn) {
		attrs[updatedAtColumn] = now
	}
	if err := orm.Assign(r.meta, rec, attrs); err != nil {
		return assignError(err)
	}
	return nil
}

// ensureKey 字符串主键为空时生成 UUID
func (r *Repo[T]) ensureKey(rec *T) error {
	if r.meta.Dynamic {
		return nil
	}
	pk := r.meta.PrimaryKey()
	if pk == nil || pk.Type == nil {
		return nil
	}
	t := pk.Type
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.String {
		return nil
	}
	if v, _ := orm.Value(r.meta, rec, pk.Column); !orm.IsZero(v) {
		return nil
	}
	if err := orm.Assign(r.meta, rec, map[string]any{pk.Column: uuid.NewString()}); err != nil {
		return assignError(err)
	}
	return nil
}

func (r *Repo[T]) hasDeclaredColumn(col string) bool {
	if r.meta.Dynamic {
		return false
	}
	_, ok := r.meta.Field(col)
	return ok
}

// remove 软删除或物理删除匹配 q 的记录，影响 0 行不视为错误
func (r *Repo[T]) remove(ctx context.Context, q *Query, force bool, key any) (int64, error) {
	col := r.meta.SoftDeleteColumn
	soft := col != "" && !force
	if !soft {
		q = q.WithTrashed()
	}
	cond, err := r.compiler().compileWhere(q)
	if err != nil {
		return 0, err
	}

	var n int64
	if soft {
		n, err = r.model.UpdateValues(ctx, map[string]any{col: r.now()}, orm.WithWhere(cond.Expr, cond.Args...))
	} else {
		if cond.Expr == "" {
			return 0, invalidInput("delete: no conditions given")
		}
		n, err = r.model.Delete(ctx, orm.WithWhere(cond.Expr, cond.Args...))
	}
	if err != nil {
		return 0, r.dbError(ctx, err, "delete")
	}
	if n > 0 {
		r.logger.Debug(ctx, "记录已删除",
			logging.Any("key", key), logging.Bool("soft", soft), logging.Int64("affected", n))
		r.afterWrite(ctx, r.newEvent(EventDeleted, key, nil, n))
	}
	return n, nil
}
