package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"safemaint-backend/internal/model"
)

// DialRedis connects to Redis and checks the connection.
func DialRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Feed carries table-change notifications between edge nodes over a Redis
// pub/sub channel. Payloads are table keys.
type Feed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewFeed creates a feed on channel.
func NewFeed(client *redis.Client, channel string, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{client: client, channel: channel, logger: logger.Named("feed")}
}

// Publish announces that table changed.
func (f *Feed) Publish(ctx context.Context, table model.TableKey) error {
	if err := f.client.Publish(ctx, f.channel, string(table)).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe returns a channel of changed tables. It is closed when ctx is
// done. Notifications for a reader that is behind are dropped: a pending
// notification already guarantees a full resync.
func (f *Feed) Subscribe(ctx context.Context) (<-chan model.TableKey, error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", f.channel, err)
	}

	out := make(chan model.TableKey, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				key, known := model.ParseTableKey(msg.Payload)
				if !known {
					f.logger.Warn("ignoring change for unknown table", zap.String("payload", msg.Payload))
					continue
				}
				select {
				case out <- key:
				default:
				}
			}
		}
	}()
	return out, nil
}
