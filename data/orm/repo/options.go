package repo

import (
	"time"

	"repokit/data/orm"
	"repokit/logging"
)

type config struct {
	primaryKey   string
	softDelete   *string
	associations []orm.AssociationMeta
	criteria     []ICriteria
	boot         []func(*CriteriaStack)
	logger       logging.Logger
	cache        IResultCache
	cacheTTL     time.Duration
	publisher    IEventPublisher
	clock        func() time.Time
}

// Option 仓储构造选项
type Option func(*config)

// WithPrimaryKey 指定主键列（默认取 primaryKey 标签，其次 id）
func WithPrimaryKey(column string) Option {
	return func(c *config) { c.primaryKey = column }
}

// WithSoftDelete 指定软删除列（默认自动识别 deleted_at）
func WithSoftDelete(column string) Option {
	return func(c *config) { c.softDelete = &column }
}

// WithoutSoftDelete 关闭软删除，删除总是物理删除
func WithoutSoftDelete() Option {
	empty := ""
	return func(c *config) { c.softDelete = &empty }
}

// WithAssociations 声明关联
func WithAssociations(assocs ...orm.AssociationMeta) Option {
	return func(c *config) { c.associations = append(c.associations, assocs...) }
}

// WithCriteria 预置条件对象
func WithCriteria(criteria ...ICriteria) Option {
	return func(c *config) { c.criteria = append(c.criteria, criteria...) }
}

// WithBoot 构造完成后执行的初始化钩子，通常用于压入默认条件
func WithBoot(fn func(stack *CriteriaStack)) Option {
	return func(c *config) {
		if fn != nil {
			c.boot = append(c.boot, fn)
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithCache 启用查询结果缓存
func WithCache(cache IResultCache) Option {
	return func(c *config) { c.cache = cache }
}

// WithCacheTTL 缓存有效期，0 表示由缓存实现决定
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) { c.cacheTTL = ttl }
}

// WithPublisher 启用变更事件发布
func WithPublisher(publisher IEventPublisher) Option {
	return func(c *config) { c.publisher = publisher }
}

// WithClock 替换时间源（时间戳与软删除标记）
func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.clock = clock }
}
