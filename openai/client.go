// Package openai adapts the upstream provider API: chat completions, image
// generation and audio transcription. The credential is supplied per call
// and never stored on the client.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/smartassist/viberbot/logger"
	"github.com/smartassist/viberbot/observability"
)

// DefaultBaseURL is the provider API root.
const DefaultBaseURL = "https://api.openai.com"

// Options configures a Client. Zeroed fields fall back to defaults.
type Options struct {
	BaseURL    string
	ChatModel  string
	ImageModel string
	AudioModel string

	CompleteTimeout   time.Duration
	ImageTimeout      time.Duration
	TranscribeTimeout time.Duration

	// HTTPClient overrides the default transport, used by tests.
	HTTPClient *http.Client
}

// Client calls the provider REST API on behalf of per-user credentials.
type Client struct {
	http       *http.Client
	baseURL    string
	chatModel  string
	imageModel string
	audioModel string

	completeTimeout   time.Duration
	imageTimeout      time.Duration
	transcribeTimeout time.Duration
}

// NewClient builds a provider client from options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ChatModel == "" {
		opts.ChatModel = "gpt-4o-mini"
	}
	if opts.ImageModel == "" {
		opts.ImageModel = "dall-e-2"
	}
	if opts.AudioModel == "" {
		opts.AudioModel = "whisper-1"
	}
	if opts.CompleteTimeout <= 0 {
		opts.CompleteTimeout = 60 * time.Second
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 180 * time.Second
	}
	if opts.TranscribeTimeout <= 0 {
		opts.TranscribeTimeout = 300 * time.Second
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{
			// Per-call deadlines come from contexts; no client-wide cap so
			// the transcription timeout is honored.
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Client{
		http:              httpc,
		baseURL:           opts.BaseURL,
		chatModel:         opts.ChatModel,
		imageModel:        opts.ImageModel,
		audioModel:        opts.AudioModel,
		completeTimeout:   opts.CompleteTimeout,
		imageTimeout:      opts.ImageTimeout,
		transcribeTimeout: opts.TranscribeTimeout,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete answers a single prompt with no conversation history.
func (c *Client) Complete(ctx context.Context, credential, prompt string) (string, error) {
	return c.chat(ctx, credential, []chatMessage{{Role: "user", Content: prompt}})
}

func (c *Client) chat(ctx context.Context, credential string, messages []chatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.completeTimeout)
	defer cancel()

	var resp chatResponse
	if err := c.postJSON(ctx, "chat", "/v1/chat/completions", credential, chatRequest{
		Model:    c.chatModel,
		Messages: messages,
	}, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Op: "chat", Message: "empty choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

// postJSON issues an authenticated JSON call and decodes the answer into
// out. Failures are reported as ProviderError and counted.
func (c *Client) postJSON(ctx context.Context, op, path, credential string, payload, out any) error {
	start := time.Now()
	err := c.doPostJSON(ctx, op, path, credential, payload, out)
	c.finish(ctx, op, start, err)
	return err
}

func (c *Client) doPostJSON(ctx context.Context, op, path, credential string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: apiErrorMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) finish(ctx context.Context, op string, start time.Time, err error) {
	elapsed := logger.Took(start)
	observability.ProviderCall(op, logger.Status(err), elapsed)
	if err != nil {
		logger.Error(ctx, "openai", op+".fail",
			slog.String("err", logger.Sanitize(err.Error())),
			slog.Duration("took", elapsed),
		)
		return
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "openai", op+".ok", slog.Duration("took", elapsed))
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func apiErrorMessage(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		return logger.SanitizeLimit(ae.Error.Message, 200)
	}
	return logger.SanitizeLimit(string(body), 200)
}
