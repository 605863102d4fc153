package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads a local media file and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, credential, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.transcribeTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.doTranscribe(ctx, credential, path)
	c.finish(ctx, "transcribe", start, err)
	return text, err
}

func (c *Client) doTranscribe(ctx context.Context, credential, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", &ProviderError{Op: "transcribe", Err: fmt.Errorf("open media: %w", err)}
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", &ProviderError{Op: "transcribe", Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", &ProviderError{Op: "transcribe", Err: fmt.Errorf("read media: %w", err)}
	}
	if err := form.WriteField("model", c.audioModel); err != nil {
		return "", &ProviderError{Op: "transcribe", Err: err}
	}
	if err := form.Close(); err != nil {
		return "", &ProviderError{Op: "transcribe", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", &ProviderError{Op: "transcribe", Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ProviderError{Op: "transcribe", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &ProviderError{Op: "transcribe", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Op: "transcribe", StatusCode: resp.StatusCode, Message: apiErrorMessage(body)}
	}
	var tr transcribeResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &ProviderError{Op: "transcribe", Err: fmt.Errorf("decode response: %w", err)}
	}
	return tr.Text, nil
}
