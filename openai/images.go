package openai

import "context"

// ImageSize is a user-facing image size choice.
type ImageSize string

const (
	ImageSizeSmall  ImageSize = "small"
	ImageSizeMedium ImageSize = "medium"
	ImageSizeLarge  ImageSize = "large"
)

// Dimensions maps the size choice to the provider pixel format.
func (s ImageSize) Dimensions() string {
	switch s {
	case ImageSizeSmall:
		return "256x256"
	case ImageSizeLarge:
		return "1024x1024"
	default:
		return "512x512"
	}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImages renders count images for the description and returns their
// URLs. An empty result is a ProviderError, not a success with no images.
func (c *Client) GenerateImages(ctx context.Context, credential, description string, count int, size ImageSize) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.imageTimeout)
	defer cancel()

	var resp imageResponse
	err := c.postJSON(ctx, "images", "/v1/images/generations", credential, imageRequest{
		Model:          c.imageModel,
		Prompt:         description,
		N:              count,
		Size:           size.Dimensions(),
		ResponseFormat: "url",
	}, &resp)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	if len(urls) == 0 {
		return nil, &ProviderError{Op: "images", Message: "no images in response"}
	}
	return urls, nil
}
