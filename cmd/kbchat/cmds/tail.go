package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/events"
	"github.com/go-go-golems/kbchat/pkg/ui"
)

type TailCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = &TailCommand{}

func NewTailCommand() (*TailCommand, error) {
	redisSection, err := events.NewRedisSection()
	if err != nil {
		return nil, errors.Wrap(err, "build redis section")
	}
	return &TailCommand{
		CommandDescription: cmds.NewCommandDescription(
			"tail",
			cmds.WithShort("Print display events mirrored to redis by running chat sessions"),
			cmds.WithSections(redisSection),
		),
	}, nil
}

func (c *TailCommand) Run(ctx context.Context, parsedLayers *values.Values) error {
	s := events.Settings{}
	if err := parsedLayers.DecodeSectionInto(events.RedisSlug, &s); err != nil {
		return errors.Wrap(err, "init redis settings")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := events.EnsureGroupAtTail(ctx, s); err != nil {
		return err
	}
	sub, err := events.NewRedisSubscriber(s)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	log.Info().Str("stream", s.StreamName()).Str("group", s.Group).Str("consumer", s.Consumer).Msg("Tailing display events")
	err = events.ForwardToDisplay(ctx, sub, s.StreamName(), ui.NewLineDisplay(os.Stdout))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
