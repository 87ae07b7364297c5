package ui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/chat"
	"github.com/go-go-golems/kbchat/pkg/widgetconfig"
)

// StatusMsg updates the status indicator.
type StatusMsg struct {
	Status string
}

// AppendMsg adds a message to the view and scrolls to it.
type AppendMsg struct {
	Message chat.Message
}

type submittedMsg struct {
	result chat.SubmitResult
}

type Options struct {
	// Markdown renders bot replies with glamour.
	Markdown bool
}

type Model struct {
	ctx   context.Context
	panel *chat.Panel
	opts  Options

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	status    string
	messages  []chat.Message
	pending   int
	lastReply string
	notice    string
	width     int
}

func NewModel(ctx context.Context, panel *chat.Panel, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question..."
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	m := Model{
		ctx:      ctx,
		panel:    panel,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		status:   widgetconfig.StatusLoading,
		width:    80,
	}
	m.renderer = m.newRenderer()
	return m
}

func (m Model) newRenderer() *glamour.TermRenderer {
	if !m.opts.Markdown {
		return nil
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(m.bubbleWidth()))
	if err != nil {
		log.Warn().Err(err).Msg("Could not create markdown renderer")
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = ev.Width
		m.viewport.Width = ev.Width
		m.viewport.Height = max(ev.Height-4, 1)
		m.input.Width = max(ev.Width-4, 10)
		m.renderer = m.newRenderer()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch ev.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlY:
			m.copyLastReply()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case StatusMsg:
		m.status = ev.Status
		return m, nil

	case AppendMsg:
		m.messages = append(m.messages, ev.Message)
		switch ev.Message.Role {
		case chat.RoleUser:
			m.pending++
		case chat.RoleBot:
			m.pending = max(m.pending-1, 0)
			m.lastReply = ev.Message.Text
		}
		m.notice = ""
		m.refresh()
		return m, m.spinner.Tick

	case submittedMsg:
		if !ev.result.Sent() {
			log.Debug().Str("reason", string(ev.result.Reason)).Msg("Submission was ignored")
		}
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit decides on the event loop whether the input goes out, and runs the
// actual submission off the loop: appends are delivered back through p.Send.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if !m.panel.Check(text).Sent() {
		return m, nil
	}
	m.input.Reset()
	ctx, panel := m.ctx, m.panel
	return m, func() tea.Msg {
		return submittedMsg{result: panel.Submit(ctx, text)}
	}
}

func (m *Model) copyLastReply() {
	if m.lastReply == "" {
		return
	}
	if err := clipboard.WriteAll(m.lastReply); err != nil {
		log.Warn().Err(err).Msg("Could not copy reply to clipboard")
		m.notice = "clipboard unavailable"
		return
	}
	m.notice = "copied last reply"
}

func (m *Model) refresh() {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) bubbleWidth() int {
	return max(m.width*8/10, 10)
}

func (m Model) renderMessage(msg chat.Message) string {
	maxWidth := m.bubbleWidth()
	if msg.Role == chat.RoleUser {
		w := min(lipgloss.Width(msg.Text)+2, maxWidth)
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, userStyle.Width(w).Render(msg.Text))
	}
	if m.renderer != nil {
		if out, err := m.renderer.Render(msg.Text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	w := min(lipgloss.Width(msg.Text)+2, maxWidth)
	return botStyle.Width(w).Render(msg.Text)
}

func (m Model) statusLine() string {
	var s string
	switch m.status {
	case widgetconfig.StatusConnected:
		s = connectedStyle.Render(m.status)
	case widgetconfig.StatusConfigError:
		s = errorStyle.Render(m.status)
	default:
		s = statusStyle.Render(m.status)
	}
	line := headerStyle.Render("kbchat") + " " + s
	if m.pending > 0 {
		line += " " + m.spinner.View()
	}
	if m.notice != "" {
		line += " " + noticeStyle.Render(m.notice)
	}
	return line
}

func (m Model) View() string {
	return m.statusLine() + "\n" +
		m.viewport.View() + "\n" +
		m.input.View() + "\n" +
		helpStyle.Render("enter: send  ctrl+y: copy reply  esc: quit")
}

// Messages returns what the view currently shows.
func (m Model) Messages() []chat.Message {
	return append([]chat.Message(nil), m.messages...)
}
