package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis allocates sequences with INCR, which is atomic across processes.
// Counters live under one namespace per deployment so several environments
// can share a Redis instance.
type Redis struct {
	client    redis.Cmdable
	namespace string
}

func NewRedis(client redis.Cmdable, namespace string) *Redis {
	if namespace == "" {
		namespace = "quorum:seq"
	}
	return &Redis{client: client, namespace: namespace}
}

func (a *Redis) Next(ctx context.Context, tenantCode string, year int, typeCode string) (int64, error) {
	redisKey := fmt.Sprintf("%s:%s", a.namespace, key(tenantCode, year, typeCode))
	next, err := a.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate sequence %s: %w", redisKey, err)
	}
	return next, nil
}
