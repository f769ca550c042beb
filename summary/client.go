package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	urlEnv = "PLENUM_SUMMARY_URL"
	keyEnv = "PLENUM_SUMMARY_KEY"
)

// Client posts the session to an HTTP summarization endpoint. Failures are
// surfaced to the caller; there is no retry.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// FromEnv builds a client from PLENUM_SUMMARY_URL and PLENUM_SUMMARY_KEY.
// Returns nil when no endpoint is configured.
func FromEnv() *Client {
	url := os.Getenv(urlEnv)
	if url == "" {
		return nil
	}
	return &Client{
		BaseURL: url,
		APIKey:  os.Getenv(keyEnv),
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) Summarize(ctx context.Context, reqData Request) (Result, error) {
	body, err := json.Marshal(reqData)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling summarization service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading summarization response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("summarization service error (HTTP %d): %s", resp.StatusCode, respBody)
	}

	var res Result
	if err := json.Unmarshal(respBody, &res); err != nil {
		return Result{}, fmt.Errorf("parsing summarization response: %w", err)
	}
	return Normalize(res, reqData.Transcript), nil
}
