package events

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const RedisSlug = "redis"

// Settings configures mirroring of display events to a Redis stream.
type Settings struct {
	Enabled  bool   `glazed:"redis-enabled"`
	Addr     string `glazed:"redis-addr"`
	Stream   string `glazed:"redis-stream"`
	Group    string `glazed:"redis-group"`
	Consumer string `glazed:"redis-consumer"`
}

func (s Settings) StreamName() string {
	if s.Stream == "" {
		return DisplayTopic
	}
	return s.Stream
}

func NewRedisSection() (schema.Section, error) {
	return schema.NewSection(
		RedisSlug,
		"Redis Streams mirroring of display events",
		schema.WithFields(
			fields.New("redis-enabled", fields.TypeBool, fields.WithDefault(false), fields.WithHelp("Mirror display events to a Redis stream")),
			fields.New("redis-addr", fields.TypeString, fields.WithDefault("localhost:6379"), fields.WithHelp("Redis address host:port")),
			fields.New("redis-stream", fields.TypeString, fields.WithDefault(DisplayTopic), fields.WithHelp("Redis stream carrying display events")),
			fields.New("redis-group", fields.TypeString, fields.WithDefault("kbchat-tail"), fields.WithHelp("Redis consumer group used by observers")),
			fields.New("redis-consumer", fields.TypeString, fields.WithDefault("tail-1"), fields.WithHelp("Redis consumer name used by observers")),
		),
	)
}

func newRedisClient(s Settings) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: s.Addr})
}

func NewRedisPublisher(s Settings) (message.Publisher, error) {
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     newRedisClient(s),
		Marshaller: rstream.DefaultMarshallerUnmarshaller{},
	}, NewZerologAdapter(log.Logger))
	if err != nil {
		return nil, errors.Wrap(err, "create redis stream publisher")
	}
	return pub, nil
}

func NewRedisSubscriber(s Settings) (message.Subscriber, error) {
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        newRedisClient(s),
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, NewZerologAdapter(log.Logger))
	if err != nil {
		return nil, errors.Wrap(err, "create redis stream subscriber")
	}
	return sub, nil
}

// EnsureGroupAtTail creates the consumer group at the end of the stream, so
// a new observer only sees events published after it attached.
func EnsureGroupAtTail(ctx context.Context, s Settings) error {
	client := newRedisClient(s)
	defer func() { _ = client.Close() }()

	err := client.XGroupCreateMkStream(ctx, s.StreamName(), s.Group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", s.Group, s.StreamName())
	}
	log.Info().Str("stream", s.StreamName()).Str("group", s.Group).Msg("Created redis consumer group at tail")
	return nil
}
