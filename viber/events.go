// Package viber is the messaging-platform boundary: callback parsing,
// signature verification, keyboard markup and the REST send client.
package viber

import (
	"encoding/json"
	"fmt"
)

// EventKind tags one inbound callback variant.
type EventKind string

const (
	KindWebhook             EventKind = "webhook"
	KindConversationStarted EventKind = "conversation_started"
	KindSubscribed          EventKind = "subscribed"
	KindUnsubscribed        EventKind = "unsubscribed"
	KindMessage             EventKind = "message"
	KindFailed              EventKind = "failed"
	KindDelivered           EventKind = "delivered"
	KindSeen                EventKind = "seen"
	// KindUnknown covers callback events outside the handled set.
	KindUnknown EventKind = "unknown"
)

// File describes an attachment carried by a message callback.
type File struct {
	Name string
	Size int64
	URL  string
}

// Event is the parsed form of one inbound callback. Kind selects which of
// the optional fields are meaningful.
type Event struct {
	Kind         EventKind
	UserID       string
	UserName     string
	MessageToken int64
	Timestamp    int64

	// Message fields, set when Kind is KindMessage.
	MessageType string
	Text        string
	File        *File

	// Desc carries the platform failure description for KindFailed.
	Desc string
}

// IsText reports whether the event is a plain text message.
func (e Event) IsText() bool {
	return e.Kind == KindMessage && e.MessageType == "text"
}

// IsFile reports whether the event carries a downloadable attachment.
func (e Event) IsFile() bool {
	return e.Kind == KindMessage && e.File != nil
}

type callbackUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type callbackMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Media    string `json:"media"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

type callback struct {
	Event        string           `json:"event"`
	Timestamp    int64            `json:"timestamp"`
	MessageToken int64            `json:"message_token"`
	User         *callbackUser    `json:"user"`
	Sender       *callbackUser    `json:"sender"`
	UserID       string           `json:"user_id"`
	Message      *callbackMessage `json:"message"`
	Desc         string           `json:"desc"`
}

// ParseEvent decodes a raw callback body into an Event. Callback events
// outside the handled set come back as KindUnknown rather than an error so
// the webhook can acknowledge them.
func ParseEvent(body []byte) (Event, error) {
	var cb callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Event{}, fmt.Errorf("viber: decode callback: %w", err)
	}

	ev := Event{
		MessageToken: cb.MessageToken,
		Timestamp:    cb.Timestamp,
		UserID:       cb.UserID,
		Desc:         cb.Desc,
	}
	if cb.User != nil {
		ev.UserID = cb.User.ID
		ev.UserName = cb.User.Name
	}
	if cb.Sender != nil {
		ev.UserID = cb.Sender.ID
		ev.UserName = cb.Sender.Name
	}

	switch cb.Event {
	case "webhook":
		ev.Kind = KindWebhook
	case "conversation_started":
		ev.Kind = KindConversationStarted
	case "subscribed":
		ev.Kind = KindSubscribed
	case "unsubscribed":
		ev.Kind = KindUnsubscribed
	case "failed":
		ev.Kind = KindFailed
	case "delivered":
		ev.Kind = KindDelivered
	case "seen":
		ev.Kind = KindSeen
	case "message":
		ev.Kind = KindMessage
		if cb.Message == nil {
			return Event{}, fmt.Errorf("viber: message callback without message body")
		}
		ev.MessageType = cb.Message.Type
		ev.Text = cb.Message.Text
		if cb.Message.Media != "" && cb.Message.Type != "text" {
			ev.File = &File{
				Name: cb.Message.FileName,
				Size: cb.Message.Size,
				URL:  cb.Message.Media,
			}
		}
	default:
		ev.Kind = KindUnknown
	}

	if ev.Kind != KindWebhook && ev.Kind != KindUnknown && ev.UserID == "" {
		return Event{}, fmt.Errorf("viber: %s callback without user id", cb.Event)
	}
	return ev, nil
}
