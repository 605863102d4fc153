package viber

import "testing"

func TestParseEventTextMessage(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"timestamp": 1457764197627,
		"message_token": 4912661846655238145,
		"sender": {"id": "01234567890A=", "name": "John McClane"},
		"message": {"type": "text", "text": "a message to the service"}
	}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != KindMessage || !ev.IsText() {
		t.Errorf("kind = %q type = %q, want text message", ev.Kind, ev.MessageType)
	}
	if ev.UserID != "01234567890A=" {
		t.Errorf("user id = %q", ev.UserID)
	}
	if ev.Text != "a message to the service" {
		t.Errorf("text = %q", ev.Text)
	}
	if ev.IsFile() {
		t.Error("text message reported as file")
	}
}

func TestParseEventFileMessage(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"sender": {"id": "u1"},
		"message": {"type": "file", "media": "https://dl.example/voice.mp3", "file_name": "voice.mp3", "size": 2048}
	}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if !ev.IsFile() {
		t.Fatal("expected a file event")
	}
	if ev.File.Name != "voice.mp3" || ev.File.Size != 2048 || ev.File.URL != "https://dl.example/voice.mp3" {
		t.Errorf("file = %+v", ev.File)
	}
}

func TestParseEventLifecycle(t *testing.T) {
	tests := []struct {
		body string
		kind EventKind
		user string
	}{
		{`{"event": "conversation_started", "user": {"id": "u1", "name": "Ann"}}`, KindConversationStarted, "u1"},
		{`{"event": "subscribed", "user": {"id": "u2"}}`, KindSubscribed, "u2"},
		{`{"event": "unsubscribed", "user_id": "u3"}`, KindUnsubscribed, "u3"},
		{`{"event": "failed", "user_id": "u4", "desc": "failure"}`, KindFailed, "u4"},
		{`{"event": "delivered", "user_id": "u5"}`, KindDelivered, "u5"},
		{`{"event": "seen", "user_id": "u6"}`, KindSeen, "u6"},
		{`{"event": "webhook", "timestamp": 1}`, KindWebhook, ""},
	}
	for _, tt := range tests {
		ev, err := ParseEvent([]byte(tt.body))
		if err != nil {
			t.Errorf("ParseEvent(%s): %v", tt.body, err)
			continue
		}
		if ev.Kind != tt.kind || ev.UserID != tt.user {
			t.Errorf("ParseEvent(%s) = kind %q user %q, want %q/%q", tt.body, ev.Kind, ev.UserID, tt.kind, tt.user)
		}
	}
}

func TestParseEventUnknownKind(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event": "client_status", "user_id": "u1"}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != KindUnknown {
		t.Errorf("kind = %q, want unknown", ev.Kind)
	}
}

func TestParseEventRejectsMalformed(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"event": "message", "sender": {"id": "u"}}`,
		`{"event": "message", "message": {"type": "text", "text": "hi"}}`,
	} {
		if _, err := ParseEvent([]byte(body)); err == nil {
			t.Errorf("ParseEvent(%s) succeeded, want error", body)
		}
	}
}
