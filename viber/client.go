package viber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	// DefaultAPIURL is the Viber REST endpoint root.
	DefaultAPIURL = "https://chatapi.viber.com"

	authTokenHeader = "X-Viber-Auth-Token"

	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
	defaultClientTimeout   = 30 * time.Second
)

// APIError is a non-zero status answer from the Viber REST API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("viber: api status %d: %s", e.Status, e.Message)
}

// Client sends messages through the Viber REST API on behalf of one bot
// account.
type Client struct {
	http      *http.Client
	apiURL    string
	authToken string
	botName   string
	botAvatar string
}

// ClientOptions configures a Client. AuthToken is required.
type ClientOptions struct {
	APIURL    string
	AuthToken string
	BotName   string
	BotAvatar string
	// HTTPClient overrides the default tuned client, used by tests.
	HTTPClient *http.Client
}

// NewClient builds a send client from options.
func NewClient(opts ClientOptions) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{
			Timeout: defaultClientTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     defaultIdleConnTimeout,
				TLSHandshakeTimeout: defaultTLSHandshake,
			},
		}
	}
	return &Client{
		http:      httpc,
		apiURL:    opts.APIURL,
		authToken: opts.AuthToken,
		botName:   opts.BotName,
		botAvatar: opts.BotAvatar,
	}
}

type senderInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type sendMessageRequest struct {
	Receiver      string     `json:"receiver"`
	MinAPIVersion int        `json:"min_api_version,omitempty"`
	Sender        senderInfo `json:"sender"`
	Type          string     `json:"type"`
	Text          string     `json:"text,omitempty"`
	Media         string     `json:"media,omitempty"`
	Keyboard      *Keyboard  `json:"keyboard,omitempty"`
}

type apiResponse struct {
	Status        int    `json:"status"`
	StatusMessage string `json:"status_message"`
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, userID, text string) error {
	return c.sendMessage(ctx, sendMessageRequest{
		Receiver: userID,
		Type:     "text",
		Text:     text,
	})
}

// SendKeyboard delivers a text message with a reply keyboard attached. An
// empty text sends the keyboard alone.
func (c *Client) SendKeyboard(ctx context.Context, userID, text string, kb Keyboard) error {
	req := sendMessageRequest{
		Receiver:      userID,
		MinAPIVersion: 6,
		Type:          "text",
		Text:          text,
		Keyboard:      &kb,
	}
	if text == "" {
		// The API rejects empty text; fall back to a bare keyboard message.
		req.Type = "keyboard"
	}
	return c.sendMessage(ctx, req)
}

// SendPicture delivers an image by URL with an optional caption.
func (c *Client) SendPicture(ctx context.Context, userID, mediaURL, caption string) error {
	return c.sendMessage(ctx, sendMessageRequest{
		Receiver: userID,
		Type:     "picture",
		Text:     caption,
		Media:    mediaURL,
	})
}

func (c *Client) sendMessage(ctx context.Context, msg sendMessageRequest) error {
	msg.Sender = senderInfo{Name: c.botName, Avatar: c.botAvatar}
	return c.post(ctx, "/pa/send_message", msg)
}

type setWebhookRequest struct {
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types,omitempty"`
	SendName   bool     `json:"send_name"`
}

// SetWebhook registers the callback URL with the platform. An empty
// eventTypes keeps the platform default set.
func (c *Client) SetWebhook(ctx context.Context, url string, eventTypes []string) error {
	return c.post(ctx, "/pa/set_webhook", setWebhookRequest{
		URL:        url,
		EventTypes: eventTypes,
		SendName:   true,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("viber: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("viber: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authTokenHeader, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("viber: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("viber: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	var ar apiResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return fmt.Errorf("viber: decode response: %w", err)
	}
	if ar.Status != 0 {
		return &APIError{Status: ar.Status, Message: ar.StatusMessage}
	}
	return nil
}

// DownloadFile streams a platform media URL to a local path, refusing bodies
// larger than maxBytes. The partial file is removed on failure.
func (c *Client) DownloadFile(ctx context.Context, url, path string, maxBytes int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("viber: build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("viber: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("viber: download status %d", resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("viber: create file: %w", err)
	}
	written, err := io.Copy(out, io.LimitReader(resp.Body, maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > maxBytes {
		err = fmt.Errorf("viber: file exceeds %d bytes", maxBytes)
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
