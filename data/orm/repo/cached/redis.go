package cached

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"repokit/data/orm/repo"
	apperrors "repokit/errors"
	"repokit/logging"
)

var _ repo.IResultCache = (*RedisCache)(nil)

// client 仅包含缓存用到的 go-redis 命令，便于替换
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Close() error
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Client     redis.UniversalClient
	Addr       string
	Username   string
	Password   string
	DB         int
	Prefix     string        // 键前缀，默认 "repokit:"
	DefaultTTL time.Duration // Set 未指定 ttl 时使用，默认 5m
	Logger     logging.Logger
}

// RedisCache 以表版本号划分命名空间的 Redis 结果缓存。
//
// Invalidate 只递增表版本，旧版本下的键不再被读取，依靠 TTL 自然过期。
type RedisCache struct {
	cfg       RedisConfig
	client    client
	ownClient bool
	logger    logging.Logger
}

// NewRedisCache 创建 Redis 缓存；未提供 Client 时按 Addr 自行建立连接
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "repokit:"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.String("component", "repo.cache.redis"))
	}

	var cl client
	var own bool
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, apperrors.NewError(apperrors.ErrCodeConfiguration, "redis cache requires Client or Addr")
		}
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		own = true
	}
	return &RedisCache{cfg: cfg, client: cl, ownClient: own, logger: cfg.Logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, table, key string) ([]byte, bool, error) {
	version, err := c.version(ctx, table)
	if err != nil {
		return nil, false, err
	}
	data, err := c.client.Get(ctx, c.entryKey(table, version, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.WrapError(err, apperrors.ErrCodeCache, "redis get failed")
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, table, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	version, err := c.version(ctx, table)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.entryKey(table, version, key), value, ttl).Err(); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCache, "redis set failed")
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, table string) error {
	version, err := c.client.Incr(ctx, c.versionKey(table)).Result()
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCache, "redis incr failed")
	}
	c.logger.Debug(ctx, "表缓存版本递增", logging.String("table", table), logging.Int64("version", version))
	return nil
}

// Close 仅关闭自行创建的连接
func (c *RedisCache) Close() error {
	if c.ownClient {
		return c.client.Close()
	}
	return nil
}

func (c *RedisCache) version(ctx context.Context, table string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(table)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.WrapError(err, apperrors.ErrCodeCache, "redis version lookup failed")
	}
	return v, nil
}

func (c *RedisCache) versionKey(table string) string {
	return c.cfg.Prefix + table + ":version"
}

func (c *RedisCache) entryKey(table string, version int64, key string) string {
	return c.cfg.Prefix + table + ":v" + strconv.FormatInt(version, 10) + ":" + key
}
