package fetch

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

	"github.com/hashicorp/go-retryablehttp"
)

// Retry and timeout policy. The header timeout bounds connect plus the
// initial response per attempt; a streaming body read is never cut short
// by it.
const (
	MaxRetries       = 4 // 5 total attempts
	RetryWaitMin     = 500 * time.Millisecond
	RetryWaitMax     = 8 * time.Second
	ConnectTimeout   = 20 * time.Second
	HeaderTimeout    = 20 * time.Second
	DownloadChunkKiB = 512
)

// DefaultUserAgent identifies this client on every request.
const DefaultUserAgent = "dlive-downloader/2.0 (+https://github.com/dliveget/dlive-downloader)"

// TransportError reports a network call that failed after the retry
// budget was spent, or a non-retryable HTTP status.
type TransportError struct {
	URL        string
	StatusCode int // 0 when the failure happened below HTTP
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed with status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("request to %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client is a resilient HTTP fetcher. Every call retries transient
// failures (connection errors, HTTP 429 and 5xx) with exponential backoff;
// other 4xx responses propagate immediately. One Client is meant to be
// shared for the lifetime of its owner so connections are pooled.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
}

// NewClient creates a fetcher with the default retry policy and user agent.
func NewClient() *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   ConnectTimeout,
		ResponseHeaderTimeout: HeaderTimeout,
		MaxIdleConnsPerHost:   8,
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport}
	rc.RetryMax = MaxRetries
	rc.RetryWaitMin = RetryWaitMin
	rc.RetryWaitMax = RetryWaitMax
	rc.Logger = nil

	return &Client{
		http:      rc,
		userAgent: DefaultUserAgent,
	}
}

// SetUserAgent overrides the user agent sent with every request.
func (c *Client) SetUserAgent(userAgent string) {
	if userAgent != "" {
		c.userAgent = userAgent
	}
}

// do runs one retryable request and returns the response with its body
// still open. Non-2xx responses are drained, closed, and converted into a
// TransportError carrying the status code.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Attempts: MaxRetries + 1, Err: err}
	}

	// Retryable statuses (429, 5xx) are exhausted inside the retry client
	// and come back through the error path above, so a response reaching
	// this point was attempted exactly once.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode, Attempts: 1}
	}

	return resp, nil
}

// FetchText fetches url and returns the response body as a string.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{URL: url, Attempts: 1, Err: err}
	}
	return string(data), nil
}

// PostJSON posts payload as JSON and returns the response status and raw
// body. Non-2xx statuses are returned to the caller rather than converted
// to an error, so API layers can attach status and body context to their
// own diagnostics. The error return covers transport failures only.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{URL: url, Attempts: MaxRetries + 1, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{URL: url, Attempts: 1, Err: err}
	}
	return resp.StatusCode, body, nil
}

// DownloadToFile streams url into path in bounded chunks without buffering
// the whole body in memory.
func (c *Client) DownloadToFile(ctx context.Context, url, path string) error {
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	buf := make([]byte, DownloadChunkKiB*1024)
	if _, err := io.CopyBuffer(out, resp.Body, buf); err != nil {
		out.Close()
		os.Remove(path)
		return &TransportError{URL: url, Attempts: 1, Err: err}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
