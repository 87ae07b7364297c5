package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ErrorReply is the fixed placeholder shown when a chat request fails for any reason.
const ErrorReply = "Error: Could not reach the API."

// Message is one entry of the conversation view. Messages are never mutated
// after they have been appended.
type Message struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`

	// Seq numbers user submissions in the order they were accepted.
	Seq uint64 `json:"seq,omitempty"`
	// ReplyTo is the Seq of the submission a bot message answers.
	ReplyTo uint64 `json:"reply_to,omitempty"`
}

func NewUserMessage(seq uint64, text string) Message {
	return Message{ID: uuid.New(), Role: RoleUser, Text: text, Time: time.Now(), Seq: seq}
}

func NewBotMessage(replyTo uint64, text string) Message {
	return Message{ID: uuid.New(), Role: RoleBot, Text: text, Time: time.Now(), ReplyTo: replyTo}
}

// Display is the rendering substrate: a status indicator and an append-only
// message list that keeps its latest entry visible.
type Display interface {
	SetStatus(status string)
	Append(msg Message)
}
