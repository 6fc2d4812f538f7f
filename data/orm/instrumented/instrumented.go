// Package instrumented 为 orm.IOrm 提供按操作计量的装饰器。
package instrumented

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	"repokit/data/db"
	"repokit/data/orm"
)

// IRecorder 接收每次模型操作的结果与耗时
type IRecorder interface {
	Observe(table, op string, err error, elapsed time.Duration)
}

// Orm 装饰底层 IOrm，所有模型操作经由 IRecorder 计量
type Orm struct {
	inner    orm.IOrm
	recorder IRecorder
	now      func() time.Time
}

// Wrap 返回计量装饰后的 IOrm；recorder 为 nil 时原样返回
func Wrap(inner orm.IOrm, recorder IRecorder) orm.IOrm {
	if recorder == nil {
		return inner
	}
	return &Orm{inner: inner, recorder: recorder, now: time.Now}
}

func (o *Orm) Capabilities() orm.Capabilities { return o.inner.Capabilities() }
func (o *Orm) Database() db.IDatabase         { return o.inner.Database() }
func (o *Orm) Raw() any                       { return o.inner.Raw() }

func (o *Orm) Model(meta *orm.ModelMeta) orm.IModel {
	return &model{inner: o.inner.Model(meta), table: meta.Table, orm: o}
}

func (o *Orm) Begin(ctx context.Context) (orm.IOrmSession, error) {
	return o.BeginTx(ctx, nil)
}

func (o *Orm) BeginTx(ctx context.Context, opts *sql.TxOptions) (orm.IOrmSession, error) {
	start := o.now()
	sess, err := o.inner.BeginTx(ctx, opts)
	o.recorder.Observe("", "begin", err, o.now().Sub(start))
	if err != nil {
		return nil, err
	}
	return &session{Orm: &Orm{inner: sess, recorder: o.recorder, now: o.now}, tx: sess}, nil
}

type session struct {
	*Orm
	tx orm.IOrmSession
}

func (s *session) Commit() error {
	start := s.now()
	err := s.tx.Commit()
	s.recorder.Observe("", "commit", err, s.now().Sub(start))
	return err
}

func (s *session) Rollback() error {
	start := s.now()
	err := s.tx.Rollback()
	s.recorder.Observe("", "rollback", err, s.now().Sub(start))
	return err
}

type model struct {
	inner orm.IModel
	table string
	orm   *Orm
}

func (m *model) observe(op string, start time.Time, err error) {
	m.orm.recorder.Observe(m.table, op, err, m.orm.now().Sub(start))
}

func (m *model) Meta() *orm.ModelMeta           { return m.inner.Meta() }
func (m *model) Capabilities() orm.Capabilities { return m.inner.Capabilities() }

func (m *model) First(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	start := m.orm.now()
	err := m.inner.First(ctx, dest, opts...)
	m.observe("first", start, err)
	return err
}

func (m *model) Find(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	start := m.orm.now()
	err := m.inner.Find(ctx, dest, opts...)
	m.observe("find", start, err)
	return err
}

func (m *model) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	start := m.orm.now()
	n, err := m.inner.Count(ctx, opts...)
	m.observe("count", start, err)
	return n, err
}

func (m *model) Create(ctx context.Context, entities ...any) error {
	start := m.orm.now()
	err := m.inner.Create(ctx, entities...)
	m.observe("create", start, err)
	return err
}

func (m *model) Save(ctx context.Context, entity any, opts ...orm.QueryOption) (int64, error) {
	start := m.orm.now()
	n, err := m.inner.Save(ctx, entity, opts...)
	m.observe("save", start, err)
	return n, err
}

func (m *model) UpdateValues(ctx context.Context, values map[string]any, opts ...orm.QueryOption) (int64, error) {
	start := m.orm.now()
	n, err := m.inner.UpdateValues(ctx, values, opts...)
	m.observe("update", start, err)
	return n, err
}

func (m *model) Delete(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	start := m.orm.now()
	n, err := m.inner.Delete(ctx, opts...)
	m.observe("delete", start, err)
	return n, err
}

func (m *model) Columns(ctx context.Context) ([]string, error) {
	start := m.orm.now()
	cols, err := m.inner.Columns(ctx)
	m.observe("columns", start, err)
	return cols, err
}

// Status 将操作结果归类为 ok / not_found / error
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case stdErrors.Is(err, orm.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
