package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/loglens/loglens/pkg/version"
)

const defaultBaseURL = "https://api.github.com"

// LogFetcher obtains the full log text for one run.
type LogFetcher interface {
	FetchRunLog(ctx context.Context, repoFullName string, providerRunID int64) (string, error)
}

// Client downloads run log archives from the provider's REST API. The logs
// endpoint answers with a redirect to a short-lived archive URL, which the
// underlying HTTP client follows.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, for enterprise hosts and tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a provider client. The token comes from GITHUB_TOKEN
// when not set explicitly; an empty token still works for public archives.
func NewClient(token string, logger *slog.Logger, opts ...ClientOption) *Client {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRunLog downloads and flattens the log archive for a run.
func (c *Client) FetchRunLog(ctx context.Context, repoFullName string, providerRunID int64) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/actions/runs/%d/logs", c.baseURL, repoFullName, providerRunID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build log request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", version.Full())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download log archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("log archive request for %s run %d returned %d: %s",
			repoFullName, providerRunID, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read log archive: %w", err)
	}
	c.logger.Debug("Downloaded log archive",
		"repo", repoFullName, "provider_run_id", providerRunID, "bytes", len(data))

	return ExtractLogArchive(data)
}
