package chat

import "sync"

// Transcript is an in-memory Display. It is what line mode and tests render into.
type Transcript struct {
	mu       sync.Mutex
	status   string
	messages []Message
	onAppend func(Message)
}

var _ Display = (*Transcript)(nil)

func NewTranscript() *Transcript {
	return &Transcript{}
}

// OnAppend registers a hook called after each append, outside the lock.
func (t *Transcript) OnAppend(fn func(Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAppend = fn
}

func (t *Transcript) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	fn := t.onAppend
	t.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (t *Transcript) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]Message, len(t.messages))
	copy(ret, t.messages)
	return ret
}

// Last returns the most recent message, the one a display keeps scrolled into view.
func (t *Transcript) Last() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// MultiDisplay forwards every update to each of its displays in order.
type MultiDisplay []Display

var _ Display = MultiDisplay(nil)

func (m MultiDisplay) SetStatus(status string) {
	for _, d := range m {
		d.SetStatus(status)
	}
}

func (m MultiDisplay) Append(msg Message) {
	for _, d := range m {
		d.Append(msg)
	}
}
