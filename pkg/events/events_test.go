package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kbchat/pkg/chat"
)

func TestPublisherDisplay_RoundTripsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewInMemoryBus()
	defer func() { _ = bus.Close() }()

	tr := chat.NewTranscript()
	done := make(chan error, 1)
	msgs, err := bus.Subscribe(ctx, DisplayTopic)
	require.NoError(t, err)
	go func() {
		done <- Forward(ctx, msgs, func(e Event) error {
			e.Apply(tr)
			return nil
		})
	}()

	d := NewPublisherDisplay(bus, "")
	d.SetStatus("API Connected")
	d.Append(chat.NewUserMessage(1, "hello"))
	d.Append(chat.NewBotMessage(1, "hi"))

	// publishes block until acked, so everything is applied already
	require.Equal(t, "API Connected", tr.Status())
	got := tr.Messages()
	require.Len(t, got, 2)
	require.Equal(t, chat.RoleUser, got[0].Role)
	require.Equal(t, "hello", got[0].Text)
	require.Equal(t, chat.RoleBot, got[1].Role)
	require.Equal(t, uint64(1), got[1].ReplyTo)

	cancel()
	select {
	case err := <-done:
		// the subscription channel may close before ctx.Done is observed
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("forwarder did not stop")
	}
}

func TestForward_SkipsBadPayloads(t *testing.T) {
	ch := make(chan *message.Message, 3)
	bad := message.NewMessage(watermill.NewUUID(), []byte(`{"type":"nope"}`))
	garbage := message.NewMessage(watermill.NewUUID(), []byte(`not json`))
	good := message.NewMessage(watermill.NewUUID(), []byte(`{"type":"status","status":"ok"}`))
	ch <- bad
	ch <- garbage
	ch <- good
	close(ch)

	var seen []Event
	err := Forward(context.Background(), ch, func(e Event) error {
		seen = append(seen, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Equal(t, "ok", seen[0].Status)

	for _, m := range []*message.Message{bad, garbage, good} {
		select {
		case <-m.Acked():
		default:
			t.Fatalf("message %s was not acked", m.UUID)
		}
	}
}

func TestNewEventFromJson_RejectsMessageWithoutBody(t *testing.T) {
	_, err := NewEventFromJson([]byte(`{"type":"message"}`))
	require.ErrorContains(t, err, "without message")
}

func TestSettings_StreamName(t *testing.T) {
	require.Equal(t, DisplayTopic, Settings{}.StreamName())
	require.Equal(t, "custom", Settings{Stream: "custom"}.StreamName())
}
