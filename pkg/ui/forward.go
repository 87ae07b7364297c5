package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/events"
)

// ForwardFunc turns display events into bubbletea messages injected into p.
func ForwardFunc(p *tea.Program) func(e events.Event) error {
	return func(e events.Event) error {
		log.Debug().Str("type", string(e.Type)).Msg("Dispatching display event to UI")
		switch e.Type {
		case events.EventStatus:
			p.Send(StatusMsg{Status: e.Status})
		case events.EventMessage:
			if e.Message != nil {
				p.Send(AppendMsg{Message: *e.Message})
			}
		}
		return nil
	}
}
