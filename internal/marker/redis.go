package marker

import (
	"context"

	"forumsync/internal/util"
)

const redisMarkerPrefix = "forumsync:marker:"

// Redis shares markers between clients through a redis instance. Markers never expire.
type Redis struct {
	client *util.RedisClient
}

func NewRedis(client *util.RedisClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	return r.client.Exists(ctx, redisMarkerPrefix+key)
}

func (r *Redis) Mark(ctx context.Context, key string) error {
	return r.client.Set(ctx, redisMarkerPrefix+key, "1", 0)
}
