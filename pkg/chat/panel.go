package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/kbchat/pkg/widgetconfig"
	"github.com/rs/zerolog/log"
)

type Outcome int

const (
	Sent Outcome = iota
	Ignored
)

type IgnoreReason string

const (
	ReasonNone       IgnoreReason = ""
	ReasonEmptyText  IgnoreReason = "empty text"
	ReasonNoEndpoint IgnoreReason = "no endpoint configured"
	ReasonClosed     IgnoreReason = "panel closed"
)

// SubmitResult tells the caller whether a submission went out. Only a Sent
// result should clear the input field.
type SubmitResult struct {
	Outcome Outcome
	Reason  IgnoreReason
	Seq     uint64
	Text    string
}

func (r SubmitResult) Sent() bool { return r.Outcome == Sent }

// Panel turns submissions into displayed messages and outbound requests.
// Requests run concurrently and independently; their replies are appended in
// arrival order. Every append goes through mu, so the Display only ever sees
// one writer at a time.
type Panel struct {
	cfg     *widgetconfig.Config
	sender  Sender
	display Display

	mu     sync.Mutex
	seq    uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPanel(cfg *widgetconfig.Config, sender Sender, display Display) *Panel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Panel{
		cfg:     cfg,
		sender:  sender,
		display: display,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetStatus forwards a status change to the display under the append lock.
func (p *Panel) SetStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.display.SetStatus(status)
}

// Check reports what Submit would do with text, without doing it.
func (p *Panel) Check(text string) SubmitResult {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return SubmitResult{Outcome: Ignored, Reason: ReasonEmptyText}
	case !p.cfg.IsSet():
		return SubmitResult{Outcome: Ignored, Reason: ReasonNoEndpoint}
	default:
		return SubmitResult{Outcome: Sent, Text: text}
	}
}

// Submit appends the user's message and sends it to the configured endpoint.
// The user message is appended before Submit returns; the reply is appended
// later from a background goroutine. ctx bounds the request in addition to
// the panel's own lifetime.
func (p *Panel) Submit(ctx context.Context, text string) SubmitResult {
	res := p.Check(text)
	if !res.Sent() {
		log.Debug().Str("reason", string(res.Reason)).Msg("Ignoring submission")
		return res
	}
	endpoint := p.cfg.APIURL()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return SubmitResult{Outcome: Ignored, Reason: ReasonClosed}
	}
	p.seq++
	res.Seq = p.seq
	p.display.Append(NewUserMessage(res.Seq, res.Text))
	p.wg.Add(1)
	p.mu.Unlock()

	go p.request(ctx, endpoint, res)
	return res
}

func (p *Panel) request(ctx context.Context, endpoint string, res SubmitResult) {
	defer p.wg.Done()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	logger := log.With().Uint64("seq", res.Seq).Str("endpoint", endpoint).Logger()
	logger.Debug().Int("text_len", len(res.Text)).Msg("Sending chat request")

	reply, err := p.sender.Ask(reqCtx, endpoint, res.Text)
	if err != nil {
		logger.Warn().Err(err).Msg("Chat request failed")
		reply = ErrorReply
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		logger.Debug().Msg("Dropping reply for closed panel")
		return
	}
	p.display.Append(NewBotMessage(res.Seq, reply))
}

// Wait blocks until every request started so far has settled.
func (p *Panel) Wait() {
	p.wg.Wait()
}

// Close cancels in-flight requests. Replies that arrive afterwards are dropped.
func (p *Panel) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}
