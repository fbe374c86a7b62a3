package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"stepchess/internal/model"
)

// RedisCache is a LiveCache backed by redis. Games are stored as JSON under
// game:<id> with a sliding TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to the redis instance at url and pings it.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func gameKey(id string) string { return "game:" + id }

// putIfNewer writes ARGV[2] unless the key already holds a game whose
// version is at least ARGV[1].
var putIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and tonumber(doc['version'] or 0) >= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *RedisCache) GetGame(ctx context.Context, id string) (*model.Game, bool, error) {
	raw, err := c.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var g model.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, false, err
	}
	return &g, true, nil
}

// PutGame stores g unless the cache already holds the same or a newer
// version of it.
func (c *RedisCache) PutGame(ctx context.Context, g *model.Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	ttl := c.ttl.Milliseconds()
	if ttl <= 0 {
		ttl = time.Hour.Milliseconds()
	}
	return putIfNewer.Run(ctx, c.rdb, []string{gameKey(g.ID)}, g.Version, raw, ttl).Err()
}

func (c *RedisCache) DeleteGame(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, gameKey(id)).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
