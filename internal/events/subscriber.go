package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, e Event)

// Subscribe listens on Channel until ctx is done. The subscription is
// confirmed with retries so a Redis restart at boot does not lose it.
// Undecodable messages are logged and skipped.
func Subscribe(ctx context.Context, client *redis.Client, h Handler) error {
	sub := client.Subscribe(ctx, Channel)
	defer sub.Close()

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.Retry(func() error {
		_, err := sub.Receive(ctx)
		if err != nil {
			logger.Warnf("subscribe %s: %v", Channel, err)
		}
		return err
	}, bo)
	if err != nil {
		return err
	}
	logger.Infof("subscribed to redis channel %q", Channel)

	ch := sub.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil || !e.Type.Valid() {
				logger.Warnw("dropping malformed notification event", "payload", msg.Payload)
				continue
			}
			h(ctx, e)
		}
	}
}
