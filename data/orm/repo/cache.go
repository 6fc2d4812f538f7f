package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"repokit/data/orm"
	"repokit/logging"
)

// IResultCache 查询结果缓存，按表整体失效
type IResultCache interface {
	Get(ctx context.Context, table, key string) ([]byte, bool, error)
	Set(ctx context.Context, table, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, table string) error
}

type cacheKeySource struct {
	Op      string           `json:"op"`
	Options orm.QueryOptions `json:"options"`
	Hidden  []string         `json:"hidden,omitempty"`
	Visible []string         `json:"visible,omitempty"`
	Extra   []any            `json:"extra,omitempty"`
}

// cacheKey 以操作与编译后的选项计算缓存键；参数无法序列化时返回 false
func cacheKey(op string, opts orm.QueryOptions, q *Query, extra ...any) (string, bool) {
	src := cacheKeySource{Op: op, Options: opts, Extra: extra}
	if q != nil {
		src.Hidden, src.Visible = q.hidden, q.visible
	}
	data, err := json.Marshal(src)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return op + ":" + hex.EncodeToString(sum[:]), true
}

// cacheable 事务内、显式跳过或加锁的查询不走缓存。
//
// 缓存按本表失效，读取了其他表（连接、预加载、关联计数与关联条件）的查询也不缓存。
func (r *Repo[T]) cacheable(q *Query, opts orm.QueryOptions, c *compiler) bool {
	if r.cache == nil || r.tx != nil || q.skipCache || opts.ForUpdate {
		return false
	}
	return len(opts.Joins) == 0 && len(opts.Preload) == 0 && len(q.counts) == 0 && !c.related
}

func (r *Repo[T]) cacheGet(ctx context.Context, key string, dest any) bool {
	data, ok, err := r.cache.Get(ctx, r.meta.Table, key)
	if err != nil {
		r.logger.Warn(ctx, "读取查询缓存失败", cacheFields(key, err)...)
		return false
	}
	if !ok {
		return false
	}
	if err := decodeCached(data, dest); err != nil {
		r.logger.Warn(ctx, "解析查询缓存失败", cacheFields(key, err)...)
		return false
	}
	return true
}

func (r *Repo[T]) cacheSet(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn(ctx, "序列化查询结果失败", cacheFields(key, err)...)
		return
	}
	if err := r.cache.Set(ctx, r.meta.Table, key, data, r.cacheTTL); err != nil {
		r.logger.Warn(ctx, "写入查询缓存失败", cacheFields(key, err)...)
	}
}

// invalidate 写操作后使整表缓存失效，失败仅记录日志
func (r *Repo[T]) invalidate(ctx context.Context) {
	if r.tx != nil {
		r.tx.dirty = true
		return
	}
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, r.meta.Table); err != nil {
		r.logger.Warn(ctx, "清除查询缓存失败", cacheFields("", err)...)
	}
}

// decodeCached 解码缓存数据；动态记录中的整数还原为 int64
func decodeCached(data []byte, dest any) error {
	switch d := dest.(type) {
	case *[]map[string]any:
		var rows []map[string]any
		if err := decodeNumbers(data, &rows); err != nil {
			return err
		}
		for _, row := range rows {
			restoreNumbers(row)
		}
		*d = rows
		return nil
	case **map[string]any:
		var row *map[string]any
		if err := decodeNumbers(data, &row); err != nil {
			return err
		}
		if row != nil {
			restoreNumbers(*row)
		}
		*d = row
		return nil
	case *[]any:
		var values []any
		if err := decodeNumbers(data, &values); err != nil {
			return err
		}
		for i, v := range values {
			values[i] = restoreNumber(v)
		}
		*d = values
		return nil
	}
	return json.Unmarshal(data, dest)
}

func cacheFields(key string, err error) []logging.Field {
	fields := []logging.Field{logging.Error(err)}
	if key != "" {
		fields = append(fields, logging.String("cache_key", key))
	}
	return fields
}

func decodeNumbers(data []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dest)
}

func restoreNumbers(row map[string]any) {
	for k, v := range row {
		row[k] = restoreNumber(v)
	}
}

func restoreNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
