package transport

import "context"

// Update is one inbound chat event, normalized away from the platform API.
type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

// ChatTarget addresses an outbound message. For direct chats the chat id
// equals the user id.
type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	DisablePreview bool
}

// Adapter is the platform transport consumed by the rest of the bot.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}
