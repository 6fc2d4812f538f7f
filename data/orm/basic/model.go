package basic

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	dbsql "repokit/data/db/sql"
	"repokit/data/orm"
)

type model struct {
	orm   *Orm
	meta  *orm.ModelMeta
	table string
}

func (m *model) Meta() *orm.ModelMeta           { return m.meta }
func (m *model) Capabilities() orm.Capabilities { return m.orm.caps }

// selectFrom 按 QueryOptions 构建 SELECT（不含 LIMIT/OFFSET 以外的特殊处理）
func (m *model) selectFrom(qo orm.QueryOptions, columns ...string) dbsql.ISelectBuilder {
	if len(columns) == 0 {
		columns = qo.Select
	}
	builder := m.orm.sql.Select(columns...).From(m.table)
	for _, j := range qo.Joins {
		builder = builder.Join(j.Kind, j.Table, j.On, j.Args...)
	}
	for _, w := range qo.Where {
		builder = builder.Where(w.Expr, w.Args...)
	}
	if len(qo.GroupBy) > 0 {
		builder = builder.GroupBy(qo.GroupBy...)
	}
	if exprs := orderExprs(qo.OrderBy); len(exprs) > 0 {
		builder = builder.OrderBy(exprs...)
	}
	if qo.ForUpdate {
		builder = builder.ForUpdate()
	}
	return builder
}

// First 查询单条记录。
func (m *model) First(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	qo := orm.CollectQueryOptions(opts...)
	builder := m.selectFrom(qo)
	// First 至少限制一条
	if qo.Limit > 0 {
		builder = builder.Limit(qo.Limit)
	} else {
		builder = builder.Limit(1)
	}
	builder = builder.Offset(qo.Offset)

	rows, err := builder.Query(ctx)
	if err != nil {
		return err
	}
	records, err := scanRecords(rows, recordType(dest))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return orm.ErrNotFound
	}
	if err := assignFirst(dest, records[0].value); err != nil {
		return err
	}
	if len(qo.Preload) > 0 {
		return m.preload(ctx, ownersOf(dest), qo.Preload)
	}
	return nil
}

// Find 查询多条记录。
func (m *model) Find(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	qo := orm.CollectQueryOptions(opts...)
	builder := m.selectFrom(qo).Limit(qo.Limit).Offset(qo.Offset)

	slice, err := sliceOf(dest)
	if err != nil {
		return err
	}

	rows, err := builder.Query(ctx)
	if err != nil {
		return err
	}
	records, err := scanRecords(rows, recordType(dest))
	if err != nil {
		return err
	}

	out := reflect.MakeSlice(slice.Type(), 0, len(records))
	ptrElems := slice.Type().Elem().Kind() == reflect.Ptr
	for _, r := range records {
		if ptrElems {
			out = reflect.Append(out, r.value.Addr())
		} else {
			out = reflect.Append(out, r.value)
		}
	}
	slice.Set(out)

	if len(qo.Preload) > 0 && len(records) > 0 {
		return m.preload(ctx, ownersOf(dest), qo.Preload)
	}
	return nil
}

// Count 统计数量；存在 GroupBy 时统计分组数。
func (m *model) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	qo := orm.CollectQueryOptions(opts...)
	qo.OrderBy = nil

	var count int64
	if len(qo.GroupBy) == 0 {
		if err := m.selectFrom(qo, "COUNT(*)").QueryRow(ctx).Scan(&count); err != nil {
			return 0, err
		}
		return count, nil
	}

	inner, args, err := m.selectFrom(qo, "1").Build()
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM (" + inner + ") AS grouped_rows"
	if err := m.orm.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Create 逐条插入并回写数据库生成的主键。
func (m *model) Create(ctx context.Context, entities ...any) error {
	for _, e := range entities {
		if err := m.createOne(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *model) createOne(ctx context.Context, entity any) error {
	pk := m.meta.PrimaryKeyColumn()
	values := orm.WritableValues(m.meta, entity)

	generated := orm.IsZero(values[pk])
	if generated {
		delete(values, pk)
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	if !m.meta.Dynamic {
		cols = orderedColumns(m.meta, values)
	} else {
		sort.Strings(cols)
	}
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = values[c]
	}

	builder := m.orm.sql.InsertInto(m.table).Columns(cols...).Values(vals...)
	if !generated {
		_, err := builder.Exec(ctx)
		return err
	}

	var id any
	if m.orm.sql.Dialect().SupportsReturning() {
		if err := builder.Returning(pk).QueryRow(ctx).Scan(&id); err != nil {
			return err
		}
	} else {
		res, err := builder.Exec(ctx)
		if err != nil {
			return err
		}
		last, err := res.LastInsertId()
		if err != nil || last == 0 {
			// 非自增主键（或驱动不支持），无需回写
			return nil
		}
		id = last
	}
	return writeBack(m.meta, entity, pk, id)
}

// Save 以实体全部非主键列执行更新。
func (m *model) Save(ctx context.Context, entity any, opts ...orm.QueryOption) (int64, error) {
	pk := m.meta.PrimaryKeyColumn()
	values := orm.WritableValues(m.meta, entity)
	pkValue, hasPK := values[pk]
	delete(values, pk)
	if len(values) == 0 {
		return 0, nil
	}

	qo := orm.CollectQueryOptions(opts...)
	if len(qo.Where) == 0 {
		if !hasPK || orm.IsZero(pkValue) {
			return 0, fmt.Errorf("basic.Model.Save: %s has no primary key value", m.table)
		}
		qo.Where = append(qo.Where, orm.Condition{Expr: pk + " = ?", Args: []any{pkValue}})
	}
	return m.UpdateValues(ctx, values, orm.WithOptions(orm.QueryOptions{Where: qo.Where}))
}

// UpdateValues 根据 values 与 QueryOptions 进行更新。
func (m *model) UpdateValues(ctx context.Context, values map[string]any, opts ...orm.QueryOption) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	qo := orm.CollectQueryOptions(opts...)
	builder := m.orm.sql.Update(m.table).SetMap(values)
	for _, w := range qo.Where {
		builder = builder.Where(w.Expr, w.Args...)
	}
	res, err := builder.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete 根据 QueryOptions 删除记录，禁止无条件删除。
func (m *model) Delete(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	qo := orm.CollectQueryOptions(opts...)
	if len(qo.Where) == 0 {
		return 0, fmt.Errorf("basic.Orm: delete without where is not allowed")
	}
	builder := m.orm.sql.DeleteFrom(m.table)
	for _, w := range qo.Where {
		builder = builder.Where(w.Expr, w.Args...)
	}
	if qo.Limit > 0 {
		builder = builder.Limit(qo.Limit)
	}
	res, err := builder.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Columns 通过方言内省数据表列名。
func (m *model) Columns(ctx context.Context) ([]string, error) {
	query, args, ok := m.orm.sql.Dialect().ColumnListingQuery(m.table)
	if !ok {
		return nil, fmt.Errorf("%w: column listing for dialect %q", orm.ErrUnsupported, m.orm.sql.Dialect().Name())
	}
	rows, err := m.orm.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func orderExprs(orders []orm.OrderBy) []string {
	exprs := make([]string, 0, len(orders))
	for _, o := range orders {
		switch {
		case o.Column == "":
		case o.Raw:
			exprs = append(exprs, o.Column)
		case o.Desc:
			exprs = append(exprs, o.Column+" DESC")
		default:
			exprs = append(exprs, o.Column+" ASC")
		}
	}
	return exprs
}

// orderedColumns 按字段声明顺序返回 values 中存在的列
func orderedColumns(meta *orm.ModelMeta, values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for _, f := range meta.Fields {
		if _, ok := values[f.Column]; ok {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

func writeBack(meta *orm.ModelMeta, entity any, pk string, id any) error {
	switch m := entity.(type) {
	case map[string]any:
		m[pk] = id
		return nil
	case *map[string]any:
		if *m == nil {
			*m = map[string]any{}
		}
		(*m)[pk] = id
		return nil
	}
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr {
		// 值类型实体无法回写
		return nil
	}
	return orm.Assign(meta, entity, map[string]any{pk: id})
}
