package imgbb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const DefaultUploadURL = "https://api.imgbb.com/1/upload"

// Client uploads images to ImgBB
type Client struct {
	UploadURL  string
	APIKey     string
	HTTPClient *http.Client
}

func New(apiKey string) *Client {
	return &Client{
		UploadURL: DefaultUploadURL,
		APIKey:    apiKey,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Upload sends base64 image data (a data: URL is accepted) and returns its https URL
func (c *Client) Upload(ctx context.Context, image string) (string, error) {
	data := StripDataURL(image)
	if data == "" {
		return "", fmt.Errorf("image data is empty")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("key", c.APIKey); err != nil {
		return "", fmt.Errorf("failed to write form: %w", err)
	}
	if err := form.WriteField("image", data); err != nil {
		return "", fmt.Errorf("failed to write form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.UploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to upload image to ImgBB: status %d - %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if response.Data.URL == "" {
		return "", fmt.Errorf("ImgBB response did not include an image URL")
	}

	imageURL := ForceHTTPS(response.Data.URL)
	slog.Info("Image uploaded", "host", "imgbb", "url", imageURL)
	return imageURL, nil
}

// StripDataURL drops a "data:<mime>;base64," prefix
func StripDataURL(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		if _, rest, ok := strings.Cut(image, ","); ok {
			return rest
		}
	}
	return image
}

// ForceHTTPS rewrites an http:// URL to https://
func ForceHTTPS(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
