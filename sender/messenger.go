package sender

import (
	"context"

	"github.com/smartassist/viberbot/viber"
)

// Messenger queues outbound platform messages through the dispatcher. It is
// the fire-and-forget boundary: a nil return means the message was accepted
// for delivery, not delivered.
type Messenger struct {
	dispatcher *Dispatcher
	client     *viber.Client
}

// NewMessenger wires a send client behind the dispatcher.
func NewMessenger(d *Dispatcher, client *viber.Client) *Messenger {
	return &Messenger{dispatcher: d, client: client}
}

// SendText queues a plain text message.
func (m *Messenger) SendText(ctx context.Context, userID, text string) error {
	return m.dispatcher.Enqueue(ctx, "send_text", userID, func(jobCtx context.Context) error {
		return m.client.SendText(jobCtx, userID, text)
	})
}

// SendKeyboard queues a text message with reply keyboard markup.
func (m *Messenger) SendKeyboard(ctx context.Context, userID, text string, kb viber.Keyboard) error {
	return m.dispatcher.Enqueue(ctx, "send_keyboard", userID, func(jobCtx context.Context) error {
		return m.client.SendKeyboard(jobCtx, userID, text, kb)
	})
}

// SendPicture queues an image message by URL.
func (m *Messenger) SendPicture(ctx context.Context, userID, mediaURL, caption string) error {
	return m.dispatcher.Enqueue(ctx, "send_picture", userID, func(jobCtx context.Context) error {
		return m.client.SendPicture(jobCtx, userID, mediaURL, caption)
	})
}

// Close drains the queue and stops the workers.
func (m *Messenger) Close() {
	m.dispatcher.Close()
}
