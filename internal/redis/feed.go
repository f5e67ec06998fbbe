package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"schooltrack/internal/stream"
)

// ChangeFeed implements stream.Feed on Redis pub/sub. Each filter scope maps
// to one channel; a change is published to every channel that covers it.
type ChangeFeed struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewChangeFeed creates a new Redis-backed change feed.
func NewChangeFeed(client *redis.Client, log zerolog.Logger) *ChangeFeed {
	return &ChangeFeed{client: client, log: log}
}

// Publish fans one event out to the given channels using a pipeline.
func (f *ChangeFeed) Publish(ctx context.Context, channels []string, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := f.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe yields the events published to one channel. The returned closer
// tears the underlying pub/sub connection down; the event channel closes
// after that.
func (f *ChangeFeed) Subscribe(ctx context.Context, channel string) (<-chan stream.Event, func(), error) {
	pubsub := f.client.Subscribe(ctx, channel)

	// Force the SUBSCRIBE round trip so a bad connection fails here rather
	// than silently dropping events.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan stream.Event)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev stream.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable change event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	closer := func() { _ = pubsub.Close() }

	return out, closer, nil
}

// Ensure ChangeFeed implements stream.Feed.
var _ stream.Feed = (*ChangeFeed)(nil)
