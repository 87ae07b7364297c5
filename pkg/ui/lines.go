package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kbchat/pkg/chat"
)

// LineDisplay renders the conversation as plain lines, for pipes and logs.
type LineDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

var _ chat.Display = (*LineDisplay)(nil)

func NewLineDisplay(w io.Writer) *LineDisplay {
	return &LineDisplay{w: w}
}

func (d *LineDisplay) SetStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprintf(d.w, "[status] %s\n", status)
}

func (d *LineDisplay) Append(msg chat.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prefix := "bot> "
	if msg.Role == chat.RoleUser {
		prefix = "you> "
	}
	_, _ = fmt.Fprintf(d.w, "%s%s\n", prefix, msg.Text)
}

// MaxLineBytes is the longest input line RunLines accepts.
const MaxLineBytes = 1 << 20

// RunLines submits every line read from r and waits for outstanding replies
// once r is exhausted or fails. Replies to lines already sent are always shown.
func RunLines(ctx context.Context, r io.Reader, panel *chat.Panel) error {
	defer panel.Wait()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := panel.Submit(ctx, scanner.Text())
		if !res.Sent() {
			log.Debug().Str("reason", string(res.Reason)).Msg("Line ignored")
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}
