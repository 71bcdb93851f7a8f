package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCache is the production session cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to ping redis at %s", addr)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) GetRoute(ctx context.Context, channelIdentity string) (*Route, error) {
	raw, err := c.client.Get(ctx, routeKey(channelIdentity)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get route")
	}
	route := &Route{}
	if err := json.Unmarshal([]byte(raw), route); err != nil {
		return nil, errors.Wrap(err, "failed to decode route")
	}
	return route, nil
}

func (c *RedisCache) SetRoute(ctx context.Context, channelIdentity string, route *Route) error {
	payload, err := json.Marshal(route)
	if err != nil {
		return errors.Wrap(err, "failed to encode route")
	}
	if err := c.client.Set(ctx, routeKey(channelIdentity), payload, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set route")
	}
	return nil
}

func (c *RedisCache) TouchRoute(ctx context.Context, channelIdentity string) error {
	if err := c.client.Expire(ctx, routeKey(channelIdentity), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to touch route")
	}
	return nil
}

func (c *RedisCache) DeleteRoute(ctx context.Context, channelIdentity string) error {
	if err := c.client.Del(ctx, routeKey(channelIdentity)).Err(); err != nil {
		return errors.Wrap(err, "failed to delete route")
	}
	return nil
}

func (c *RedisCache) GetContext(ctx context.Context, tenantID int64, channelIdentity string) (*Context, error) {
	raw, err := c.client.Get(ctx, sessionKey(tenantID, channelIdentity)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session context")
	}
	sc := &Context{}
	if err := json.Unmarshal([]byte(raw), sc); err != nil {
		return nil, errors.Wrap(err, "failed to decode session context")
	}
	return sc, nil
}

func (c *RedisCache) SetContext(ctx context.Context, tenantID int64, channelIdentity string, sc *Context) error {
	payload, err := json.Marshal(sc)
	if err != nil {
		return errors.Wrap(err, "failed to encode session context")
	}
	if err := c.client.Set(ctx, sessionKey(tenantID, channelIdentity), payload, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set session context")
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
