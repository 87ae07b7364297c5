package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/chat"
)

// DisplayTopic carries every status change and appended message of a chat session.
const DisplayTopic = "kbchat.display"

type EventType string

const (
	EventStatus  EventType = "status"
	EventMessage EventType = "message"
)

type Event struct {
	Type    EventType     `json:"type"`
	Status  string        `json:"status,omitempty"`
	Message *chat.Message `json:"message,omitempty"`
}

func NewEventFromJson(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "decode display event")
	}
	switch e.Type {
	case EventStatus:
	case EventMessage:
		if e.Message == nil {
			return Event{}, errors.New("message event without message")
		}
	default:
		return Event{}, errors.Errorf("unknown display event type %q", e.Type)
	}
	return e, nil
}

// Apply replays the event onto a display.
func (e Event) Apply(d chat.Display) {
	switch e.Type {
	case EventStatus:
		d.SetStatus(e.Status)
	case EventMessage:
		if e.Message != nil {
			d.Append(*e.Message)
		}
	}
}

// PublisherDisplay is a chat.Display that publishes each update instead of rendering it.
type PublisherDisplay struct {
	publisher message.Publisher
	topic     string
}

var _ chat.Display = (*PublisherDisplay)(nil)

func NewPublisherDisplay(publisher message.Publisher, topic string) *PublisherDisplay {
	if topic == "" {
		topic = DisplayTopic
	}
	return &PublisherDisplay{publisher: publisher, topic: topic}
}

func (d *PublisherDisplay) SetStatus(status string) {
	d.publish(Event{Type: EventStatus, Status: status})
}

func (d *PublisherDisplay) Append(msg chat.Message) {
	d.publish(Event{Type: EventMessage, Message: &msg})
}

func (d *PublisherDisplay) publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("type", string(e.Type)).Msg("Failed to encode display event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := d.publisher.Publish(d.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", d.topic).Str("type", string(e.Type)).Msg("Failed to publish display event")
	}
}

// NewInMemoryBus returns a gochannel pub/sub that blocks each publish until
// subscribers acked it, so subscribers observe events in publish order.
func NewInMemoryBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, NewZerologAdapter(log.Logger))
}

// Forward decodes display events from msgs and hands them to fn until msgs
// is closed or ctx is done. Every message is acked, including undecodable
// ones, which are logged and skipped.
func Forward(ctx context.Context, msgs <-chan *message.Message, fn func(Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			e, err := NewEventFromJson(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Skipping undecodable display event")
				msg.Ack()
				continue
			}
			err = fn(e)
			msg.Ack()
			if err != nil {
				return err
			}
		}
	}
}

// ForwardToDisplay subscribes to topic and applies every event to d.
func ForwardToDisplay(ctx context.Context, sub message.Subscriber, topic string, d chat.Display) error {
	if topic == "" {
		topic = DisplayTopic
	}
	msgs, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return errors.Wrapf(err, "subscribe to %s", topic)
	}
	return Forward(ctx, msgs, func(e Event) error {
		e.Apply(d)
		return nil
	})
}
