package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

const dedupeTTL = 24 * time.Hour

// MarkDelivery records that a gateway payment id has been processed and
// reports whether this delivery is the first. Best-effort: a false negative
// only means the finalizer sees one more idempotent replay.
func (r *Redis) MarkDelivery(paymentID string) (bool, error) {
	key := "webhook_seen:" + paymentID
	ok, err := r.Client.SetNX(context.Background(), key, 1, dedupeTTL).Result()
	return ok, err
}

// ClearDelivery drops the dedup mark so a delivery can be reprocessed, used
// when handling failed after the mark was taken.
func (r *Redis) ClearDelivery(paymentID string) error {
	key := "webhook_seen:" + paymentID
	_, err := r.Client.Del(context.Background(), key).Result()
	if err == redis.Nil {
		return nil
	}
	return err
}
