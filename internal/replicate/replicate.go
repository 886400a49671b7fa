package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.replicate.com"

// Client runs models through the Replicate predictions API
type Client struct {
	BaseURL      string
	Token        string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// New returns a client for the hosted API
func New(token string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		PollInterval: time.Second,
	}
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (p *prediction) done() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// Run creates a prediction for model ("owner/name" or "owner/name:version")
// and waits for it to reach a terminal state
func (c *Client) Run(ctx context.Context, model string, input any) (json.RawMessage, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("REPLICATE_API_TOKEN environment variable not set")
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s/predictions", c.BaseURL, model)
	body := map[string]any{"input": input}
	if _, version, ok := strings.Cut(model, ":"); ok {
		endpoint = c.BaseURL + "/v1/predictions"
		body["version"] = version
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	pred, err := c.do(req)
	if err != nil {
		return nil, err
	}
	slog.Debug("Prediction created", "id", pred.ID, "model", model, "status", pred.Status)

	for !pred.done() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.PollInterval):
		}

		pollURL := pred.URLs.Get
		if pollURL == "" {
			pollURL = fmt.Sprintf("%s/v1/predictions/%s", c.BaseURL, pred.ID)
		}
		req, err := http.NewRequestWithContext(ctx, "GET", pollURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create poll request: %w", err)
		}
		if pred, err = c.do(req); err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, errorMessage(pred.Error))
	}
	return pred.Output, nil
}

func (c *Client) do(req *http.Request) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		var problem struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &problem) == nil && problem.Detail != "" {
			return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode, problem.Detail)
		}
		return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode, string(body))
	}

	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return &pred, nil
}

func errorMessage(raw json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
		return msg
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "no error detail"
	}
	return string(raw)
}
