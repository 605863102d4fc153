package viber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientOptions{
		APIURL:     srv.URL,
		AuthToken:  "test-token",
		BotName:    "Smart Assistant",
		HTTPClient: srv.Client(),
	})
}

func TestSendTextRequestShape(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pa/send_message" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Viber-Auth-Token") != "test-token" {
			t.Errorf("auth header = %q", r.Header.Get("X-Viber-Auth-Token"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"status":0,"status_message":"ok"}`))
	})

	if err := c.SendText(context.Background(), "u1", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got["receiver"] != "u1" || got["type"] != "text" || got["text"] != "hello" {
		t.Errorf("payload = %v", got)
	}
	sender := got["sender"].(map[string]any)
	if sender["name"] != "Smart Assistant" {
		t.Errorf("sender = %v", sender)
	}
}

func TestSendKeyboardAttachesMarkup(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":0}`))
	})

	kb := NewKeyboard(ReplyButton("Help", "__help__"))
	if err := c.SendKeyboard(context.Background(), "u1", "pick one", kb); err != nil {
		t.Fatalf("SendKeyboard: %v", err)
	}
	if got["type"] != "text" || got["min_api_version"] != float64(6) {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["keyboard"]; !ok {
		t.Error("keyboard missing from payload")
	}

	if err := c.SendKeyboard(context.Background(), "u1", "", kb); err != nil {
		t.Fatalf("SendKeyboard bare: %v", err)
	}
	if got["type"] != "keyboard" {
		t.Errorf("bare keyboard type = %v", got["type"])
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":2,"status_message":"invalid auth token"}`))
	})
	err := c.SendText(context.Background(), "u1", "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != 2 || apiErr.Message != "invalid auth token" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestSetWebhook(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pa/set_webhook" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":0}`))
	})
	if err := c.SetWebhook(context.Background(), "https://bot.example/viber/webhook", []string{"message"}); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}
	if got["url"] != "https://bot.example/viber/webhook" {
		t.Errorf("payload = %v", got)
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media-bytes"))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(ClientOptions{AuthToken: "t", HTTPClient: srv.Client()})

	dir := t.TempDir()
	path := filepath.Join(dir, "voice.mp3")
	if err := c.DownloadFile(context.Background(), srv.URL, path, 1024); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "media-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDownloadFileSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(ClientOptions{AuthToken: "t", HTTPClient: srv.Client()})

	path := filepath.Join(t.TempDir(), "big.mp4")
	if err := c.DownloadFile(context.Background(), srv.URL, path, 16); err == nil {
		t.Fatal("oversized download succeeded")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}
