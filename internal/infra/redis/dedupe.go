package redis

import (
	"context"
	"time"

	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/infra/metrics"
)

var _ adapter.EventDeduper = (*EventDeduper)(nil)

// EventDeduper marks webhook event ids as seen with SET NX for ttl.
type EventDeduper struct {
	cli RedisClient
	ttl time.Duration
}

func NewEventDeduper(c RedisClient, ttl time.Duration) *EventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventDeduper{cli: c, ttl: ttl}
}

func eventKey(id string) string { return "webhook:event:" + id }

func (d *EventDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.cli.SetNX(ctx, eventKey(id), time.Now().Unix(), d.ttl)
	if err != nil {
		metrics.IncCacheRequest("webhook_dedupe", "error")
		return false, err
	}
	if ok {
		metrics.IncCacheRequest("webhook_dedupe", "first")
	} else {
		metrics.IncCacheRequest("webhook_dedupe", "duplicate")
	}
	return ok, nil
}

func (d *EventDeduper) Forget(ctx context.Context, id string) error {
	return d.cli.Del(ctx, eventKey(id))
}
