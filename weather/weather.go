package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultURL is the Dublin observation feed.
	DefaultURL = "https://prodapi.metweb.ie/observations/dublin"
	// DefaultTimeout bounds one weather request.
	DefaultTimeout = 10 * time.Second
)

// ErrMalformed is returned when the body is not a JSON document.
var ErrMalformed = errors.New("weather feed is not valid JSON")

// Observation is the most recent reading. Absent or unparseable fields are nil.
type Observation struct {
	Temperature *float64 `json:"temp"`
	WindSpeed   *float64 `json:"windSpeed"`
	Rainfall    *float64 `json:"rainfall"`
	Timestamp   *string  `json:"timestamp"`
}

// StatusError reports a non-200 response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Weather fetch failed (%d)", e.StatusCode)
}

// Client fetches observations. It is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a weather client. Empty url and zero timeout select the defaults.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Fetch returns the last element of the observations array. A document
// without observations yields an empty Observation.
func (c *Client) Fetch(ctx context.Context) (*Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather body: %w", err)
	}
	return Parse(body)
}

// Parse extracts the latest observation from a feed document.
func Parse(body []byte) (*Observation, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformed
	}
	obs := &Observation{}
	list := gjson.GetBytes(body, "observations")
	if !list.IsArray() {
		return obs, nil
	}
	items := list.Array()
	if len(items) == 0 {
		return obs, nil
	}
	latest := items[len(items)-1]
	obs.Temperature = number(latest.Get("airTemperature"))
	obs.WindSpeed = number(latest.Get("windSpeed"))
	obs.Rainfall = number(latest.Get("rainfall"))
	if t := latest.Get("time"); t.Exists() && t.Type != gjson.Null {
		s := t.String()
		obs.Timestamp = &s
	}
	return obs, nil
}

func number(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		v := r.Float()
		return &v
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	default:
		return nil
	}
}
