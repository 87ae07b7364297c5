package cmds

import (
	"context"
	"net/http"
	"os"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/kbchat/pkg/chat"
	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/ui"
	"github.com/go-go-golems/kbchat/pkg/widgetconfig"
)

type ChatSettings struct {
	Config   string `glazed:"config"`
	BaseURL  string `glazed:"base-url"`
	Markdown bool   `glazed:"markdown"`
	LineMode bool   `glazed:"line-mode"`

	Redis events.Settings
}

type ChatCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = &ChatCommand{}

func NewChatCommand() (*ChatCommand, error) {
	redisSection, err := events.NewRedisSection()
	if err != nil {
		return nil, errors.Wrap(err, "build redis section")
	}

	return &ChatCommand{
		CommandDescription: cmds.NewCommandDescription(
			"chat",
			cmds.WithShort("Chat with a knowledge-base endpoint"),
			cmds.WithLong("Load the endpoint from a config resource, then send every entered line to it and show the replies."),
			cmds.WithFlags(
				fields.New(
					"config",
					fields.TypeString,
					fields.WithHelp("Config resource: path, file:// or http(s) URL"),
					fields.WithDefault(widgetconfig.DefaultSource),
				),
				fields.New(
					"base-url",
					fields.TypeString,
					fields.WithHelp("Base URL a relative --config is resolved against"),
					fields.WithDefault(""),
				),
				fields.New(
					"markdown",
					fields.TypeBool,
					fields.WithHelp("Render replies as markdown"),
					fields.WithDefault(false),
				),
				fields.New(
					"line-mode",
					fields.TypeBool,
					fields.WithHelp("Read questions from stdin line by line instead of the TUI"),
					fields.WithDefault(false),
				),
			),
			cmds.WithSections(redisSection),
		),
	}, nil
}

func (c *ChatCommand) Run(ctx context.Context, parsedLayers *values.Values) error {
	s := &ChatSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "init chat settings")
	}
	if err := parsedLayers.DecodeSectionInto(events.RedisSlug, &s.Redis); err != nil {
		return errors.Wrap(err, "init redis settings")
	}

	source, err := widgetconfig.ResolveSource(s.BaseURL, s.Config)
	if err != nil {
		return err
	}
	// submissions are never timed out, only Close cancels them
	httpClient := &http.Client{}
	loader := &widgetconfig.Loader{Source: source, HTTPClient: httpClient}
	cfg := widgetconfig.NewConfig()

	var mirrors chat.MultiDisplay
	if s.Redis.Enabled {
		pub, err := events.NewRedisPublisher(s.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		log.Info().Str("addr", s.Redis.Addr).Str("stream", s.Redis.StreamName()).Msg("Mirroring display events to redis")
		mirrors = append(mirrors, events.NewPublisherDisplay(pub, s.Redis.StreamName()))
	}

	if s.LineMode || !isatty.IsTerminal(os.Stdin.Fd()) {
		return runLineMode(ctx, loader, cfg, chat.NewClient(httpClient), mirrors)
	}
	return runTUI(ctx, loader, cfg, chat.NewClient(httpClient), mirrors, ui.Options{Markdown: s.Markdown})
}

func runLineMode(
	ctx context.Context,
	loader *widgetconfig.Loader,
	cfg *widgetconfig.Config,
	sender chat.Sender,
	mirrors chat.MultiDisplay,
) error {
	display := append(chat.MultiDisplay{ui.NewLineDisplay(os.Stdout)}, mirrors...)
	panel := chat.NewPanel(cfg, sender, display)
	defer panel.Close()

	// a failed load leaves the panel without an endpoint, every line is then ignored
	_ = widgetconfig.Startup(ctx, loader, cfg, panel)

	return ui.RunLines(ctx, os.Stdin, panel)
}

func runTUI(
	ctx context.Context,
	loader *widgetconfig.Loader,
	cfg *widgetconfig.Config,
	sender chat.Sender,
	mirrors chat.MultiDisplay,
	opts ui.Options,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := events.NewInMemoryBus()
	defer func() { _ = bus.Close() }()

	// subscribe before anything is published, gochannel drops messages without subscribers
	msgs, err := bus.Subscribe(ctx, events.DisplayTopic)
	if err != nil {
		return errors.Wrap(err, "subscribe to display bus")
	}

	display := append(chat.MultiDisplay{events.NewPublisherDisplay(bus, events.DisplayTopic)}, mirrors...)
	panel := chat.NewPanel(cfg, sender, display)

	p := tea.NewProgram(ui.NewModel(ctx, panel, opts), tea.WithAltScreen(), tea.WithContext(ctx))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := events.Forward(egCtx, msgs, ui.ForwardFunc(p))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		_ = widgetconfig.Startup(egCtx, loader, cfg, panel)
		return nil
	})

	_, runErr := p.Run()
	panel.Close()
	cancel()
	drain(msgs)

	if err := eg.Wait(); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return errors.Wrap(runErr, "run chat ui")
	}
	return nil
}

// drain acks whatever is still buffered so blocked publishers can return.
func drain(msgs <-chan *message.Message) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			msg.Ack()
		default:
			return
		}
	}
}
