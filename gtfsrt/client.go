package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single vehicle feed request.
const DefaultTimeout = 15 * time.Second

// MaxBodyBytes caps a decoded feed response. City-wide vehicle feeds are a few MB.
const MaxBodyBytes = 64 << 20

// ErrBodyTooLarge is wrapped in a TransportError when a feed exceeds the body cap.
var ErrBodyTooLarge = errors.New("feed body exceeds size limit")

// Client fetches the vehicle position feed. It keeps no state between
// calls and never retries; retry policy belongs to the caller.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	maxBytes   int64
	now        func() time.Time
}

// NewClient creates a feed client. A zero timeout selects DefaultTimeout.
// apiKey is sent as the x-api-key header when non-empty.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   MaxBodyBytes,
		now:        time.Now,
	}
}

// URL returns the configured feed endpoint.
func (c *Client) URL() string { return c.url }

// Fetch issues one request and decodes the response into a new snapshot.
func (c *Client) Fetch(ctx context.Context) (*FeedSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("build request for %s: %w", c.url, err)}
	}
	req.Header.Set("Accept", "application/x-protobuf, application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to fetch %s: %w", c.url, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{RetryAfter: resp.Header.Get("Retry-After")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: excerpt(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read body from %s: %w", c.url, err)}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, &TransportError{Err: fmt.Errorf("%s: %w (%d bytes)", c.url, ErrBodyTooLarge, c.maxBytes)}
	}

	headerTS, entities, err := decodeWithHeader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return &FeedSnapshot{
		Entities:        entities,
		FetchedAt:       c.now(),
		HeaderTimestamp: headerTS,
	}, nil
}

func decodeWithHeader(body []byte, contentType string) (int64, []VehicleEntity, error) {
	switch d := DecoderFor(contentType, body).(type) {
	case JSONDecoder:
		return d.decode(body)
	case ProtobufDecoder:
		return d.decode(body)
	default:
		ents, err := d.Decode(body)
		return 0, ents, err
	}
}
