package gtfsrt

import "fmt"

// RateLimitMessage is shown verbatim to end users when upstream answers 429.
const RateLimitMessage = "Rate limit reached. Please wait a minute before refreshing."

// maxBodyExcerpt caps the upstream body kept on an UpstreamError.
const maxBodyExcerpt = 512

// RateLimitedError is returned when the feed answers HTTP 429.
type RateLimitedError struct {
	RetryAfter string // Retry-After header, if sent
}

func (e *RateLimitedError) Error() string { return RateLimitMessage }

// UpstreamError is any other non-2xx answer from the feed.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream HTTP %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps network, timeout and body read failures.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned for a payload that cannot be decoded at the top level.
type DecodeError struct {
	Format string // "protobuf" or "json"
	Err    error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Format, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

func excerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		body = body[:maxBodyExcerpt]
	}
	return string(body)
}
