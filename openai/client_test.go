package openai

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
	return NewClient(Options{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func TestCompleteSendsPromptAndCredential(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	})

	answer, err := c.Complete(context.Background(), "sk-test", "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if answer != "hi there" {
		t.Errorf("answer = %q", answer)
	}
	messages := got["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %v", messages)
	}
	msg := messages[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "hello" {
		t.Errorf("message = %v", msg)
	}
}

func TestCompleteSurfacesProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	})

	_, err := c.Complete(context.Background(), "sk-bad", "hello")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if !pe.Unauthorized() {
		t.Errorf("Unauthorized() = false for status %d", pe.StatusCode)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Complete(context.Background(), "sk-test", "hello")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

func TestSessionKeepsHistoryAcrossTurns(t *testing.T) {
	var lastMessages []any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		lastMessages = req["messages"].([]any)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"answer"}}]}`))
	})

	s := c.NewSession("cook")
	if s.Role() != "cook" {
		t.Errorf("role = %q", s.Role())
	}
	if _, err := s.Ask(context.Background(), "sk-test", "first"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := s.Ask(context.Background(), "sk-test", "second"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	// system prompt + first turn + answer + second question
	if len(lastMessages) != 4 {
		t.Fatalf("message count = %d: %v", len(lastMessages), lastMessages)
	}
	system := lastMessages[0].(map[string]any)
	if system["role"] != "system" {
		t.Errorf("first message = %v", system)
	}
	last := lastMessages[3].(map[string]any)
	if last["content"] != "second" {
		t.Errorf("last message = %v", last)
	}
}

func TestSessionHistoryUnchangedOnFailure(t *testing.T) {
	fail := true
	var lastCount int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		lastCount = len(req["messages"].([]any))
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	s := c.NewSession("doctor")
	if _, err := s.Ask(context.Background(), "sk-test", "question"); err == nil {
		t.Fatal("expected failure")
	}
	fail = false
	if _, err := s.Ask(context.Background(), "sk-test", "question"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	// system prompt + the single question; the failed attempt left no trace
	if lastCount != 2 {
		t.Errorf("retry message count = %d, want 2", lastCount)
	}
}

func TestGenerateImages(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"data":[{"url":"https://img.example/1"},{"url":"https://img.example/2"}]}`))
	})

	urls, err := c.GenerateImages(context.Background(), "sk-test", "a red fox", 2, ImageSizeSmall)
	if err != nil {
		t.Fatalf("GenerateImages: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://img.example/1" {
		t.Errorf("urls = %v", urls)
	}
	if got["size"] != "256x256" || got["n"] != float64(2) {
		t.Errorf("payload = %v", got)
	}
}

func TestGenerateImagesEmptyResultIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	_, err := c.GenerateImages(context.Background(), "sk-test", "nothing", 1, ImageSizeMedium)
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

func TestImageSizeDimensions(t *testing.T) {
	tests := []struct {
		size ImageSize
		want string
	}{
		{ImageSizeSmall, "256x256"},
		{ImageSizeMedium, "512x512"},
		{ImageSizeLarge, "1024x1024"},
	}
	for _, tt := range tests {
		if got := tt.size.Dimensions(); got != tt.want {
			t.Errorf("%s.Dimensions() = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("model = %q", r.FormValue("model"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			file.Close()
			if header.Filename != "voice.mp3" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		w.Write([]byte(`{"text":"hello from audio"}`))
	})

	path := filepath.Join(t.TempDir(), "voice.mp3")
	if err := os.WriteFile(path, []byte("fake-audio"), 0o600); err != nil {
		t.Fatalf("write media: %v", err)
	}
	text, err := c.Transcribe(context.Background(), "sk-test", path)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello from audio" {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://unused.example"})
	_, err := c.Transcribe(context.Background(), "sk-test", filepath.Join(t.TempDir(), "absent.mp3"))
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}
