package ui

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kbchat/pkg/chat"
	"github.com/go-go-golems/kbchat/pkg/widgetconfig"
)

func newTestPanel(t *testing.T, endpoint string, display chat.Display) *chat.Panel {
	t.Helper()
	cfg := widgetconfig.NewConfig()
	if endpoint != "" {
		require.NoError(t, cfg.Set(widgetconfig.Settings{APIURL: endpoint}))
	}
	sender := chat.SenderFunc(func(_ context.Context, _ string, text string) (string, error) {
		return "re: " + text, nil
	})
	return chat.NewPanel(cfg, sender, display)
}

func typeText(m Model, text string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func TestModel_EnterWithoutEndpointKeepsInput(t *testing.T) {
	m := NewModel(context.Background(), newTestPanel(t, "", chat.NewTranscript()), Options{})
	m = typeText(m, "hello")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.Nil(t, cmd)
	require.Equal(t, "hello", m.input.Value())
}

func TestModel_EnterSubmitsAndClearsInput(t *testing.T) {
	tr := chat.NewTranscript()
	panel := newTestPanel(t, "http://endpoint", tr)
	m := NewModel(context.Background(), panel, Options{})
	m = typeText(m, "hello")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	require.Equal(t, "", m.input.Value())

	msg := cmd()
	sm, ok := msg.(submittedMsg)
	require.True(t, ok)
	require.True(t, sm.result.Sent())

	panel.Wait()
	got := tr.Messages()
	require.Len(t, got, 2)
	require.Equal(t, "hello", got[0].Text)
	require.Equal(t, "re: hello", got[1].Text)
}

func TestModel_WhitespaceEnterIsIgnored(t *testing.T) {
	m := NewModel(context.Background(), newTestPanel(t, "http://endpoint", chat.NewTranscript()), Options{})
	m = typeText(m, "   ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Equal(t, "   ", next.(Model).input.Value())
}

func TestModel_AppendScrollsToBottomAndTracksPending(t *testing.T) {
	m := NewModel(context.Background(), newTestPanel(t, "http://endpoint", chat.NewTranscript()), Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 8})
	m = next.(Model)

	next, _ = m.Update(StatusMsg{Status: widgetconfig.StatusConnected})
	m = next.(Model)
	require.Contains(t, m.View(), widgetconfig.StatusConnected)

	for i := 0; i < 10; i++ {
		next, _ = m.Update(AppendMsg{Message: chat.NewUserMessage(uint64(i+1), "question")})
		m = next.(Model)
	}
	require.Equal(t, 10, m.pending)

	next, _ = m.Update(AppendMsg{Message: chat.NewBotMessage(10, "the latest answer")})
	m = next.(Model)
	require.Equal(t, 9, m.pending)
	require.Equal(t, "the latest answer", m.lastReply)
	require.True(t, m.viewport.AtBottom())
	require.Contains(t, m.viewport.View(), "the latest answer")
	require.Len(t, m.Messages(), 11)
}

func TestLineDisplay_AndRunLines(t *testing.T) {
	var out bytes.Buffer
	d := NewLineDisplay(&out)
	panel := newTestPanel(t, "http://endpoint", d)
	d.SetStatus(widgetconfig.StatusConnected)

	err := RunLines(context.Background(), strings.NewReader("hello\n\n   \n"), panel)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{
		"[status] " + widgetconfig.StatusConnected,
		"you> hello",
		"bot> re: hello",
	}, lines)
}

func TestRunLines_OverlongLineStillShowsPendingReplies(t *testing.T) {
	var out bytes.Buffer
	d := NewLineDisplay(&out)

	started := make(chan struct{})
	release := make(chan struct{})
	sender := chat.SenderFunc(func(_ context.Context, _ string, text string) (string, error) {
		close(started)
		<-release
		return "re: " + text, nil
	})
	cfg := widgetconfig.NewConfig()
	require.NoError(t, cfg.Set(widgetconfig.Settings{APIURL: "http://endpoint"}))
	panel := chat.NewPanel(cfg, sender, d)
	defer panel.Close()

	go func() {
		<-started
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	input := "hello\n" + strings.Repeat("x", MaxLineBytes+1) + "\n"
	err := RunLines(context.Background(), strings.NewReader(input), panel)
	require.ErrorIs(t, err, bufio.ErrTooLong)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{"you> hello", "bot> re: hello"}, lines)
}

func TestRunLines_AcceptsLongLines(t *testing.T) {
	var out bytes.Buffer
	d := NewLineDisplay(&out)
	panel := newTestPanel(t, "http://endpoint", d)

	long := strings.Repeat("y", 200*1024)
	require.NoError(t, RunLines(context.Background(), strings.NewReader(long+"\n"), panel))
	require.Contains(t, out.String(), "bot> re: "+long)
}
