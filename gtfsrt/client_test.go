package gtfsrt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchJSON(t *testing.T) {
	var gotKey, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	fixed := time.Unix(1700000100, 0)
	c.now = func() time.Time { return fixed }

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, gotAccept, "application/x-protobuf")
	assert.Len(t, snap.Entities, 2)
	assert.Equal(t, fixed, snap.FetchedAt)
	assert.Equal(t, int64(1700000000), snap.HeaderTimestamp)
}

func TestClient_FetchProtobuf(t *testing.T) {
	body := buildFeed(t, vehicleEntity("E1", "V1", "4820_1", 53.5, -6.25, 1700000010))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-api-key"), "no key configured")
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	snap, err := NewClient(srv.URL, "", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, "V1", snap.Entities[0].VehicleID)
	assert.Equal(t, int64(1700000000), snap.HeaderTimestamp)
}

func TestClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		ctype   string
		checkFn func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			checkFn: func(t *testing.T, err error) {
				var rl *RateLimitedError
				require.True(t, errors.As(err, &rl))
				assert.Equal(t, "60", rl.RetryAfter)
				assert.Equal(t, RateLimitMessage, err.Error())
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			checkFn: func(t *testing.T, err error) {
				var ue *UpstreamError
				require.True(t, errors.As(err, &ue))
				assert.Equal(t, 500, ue.StatusCode)
				assert.Equal(t, "boom", ue.Body)
				var rl *RateLimitedError
				assert.False(t, errors.As(err, &rl))
			},
		},
		{
			name:   "long body is truncated",
			status: http.StatusForbidden,
			body:   strings.Repeat("x", 2*maxBodyExcerpt),
			checkFn: func(t *testing.T, err error) {
				var ue *UpstreamError
				require.True(t, errors.As(err, &ue))
				assert.Len(t, ue.Body, maxBodyExcerpt)
			},
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `{"entity": [`,
			ctype:  "application/json",
			checkFn: func(t *testing.T, err error) {
				var de *DecodeError
				require.True(t, errors.As(err, &de))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.ctype != "" {
					w.Header().Set("Content-Type", tt.ctype)
				}
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "60")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			snap, err := NewClient(srv.URL, "k", time.Second).Fetch(context.Background())
			assert.Nil(t, snap)
			require.Error(t, err)
			tt.checkFn(t, err)
		})
	}
}

func TestClient_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	c.maxBytes = int64(len(sampleJSON))
	_, err := c.Fetch(context.Background())
	require.NoError(t, err, "a body exactly at the cap is accepted")

	c.maxBytes = int64(len(sampleJSON)) - 1
	_, err = c.Fetch(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te), "expected TransportError, got %v", err)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, "", 50*time.Millisecond).Fetch(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te), "expected TransportError, got %v", err)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", time.Second).Fetch(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.NotNil(t, errors.Unwrap(te))
}
