package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `{"observations": [
  {"airTemperature": 9, "windSpeed": 20, "rainfall": "0.0", "time": "09:00"},
  {"airTemperature": "11", "windSpeed": 15, "rainfall": "n/a", "time": "10:00"}
]}`

func TestParse(t *testing.T) {
	obs, err := Parse([]byte(sampleFeed))
	require.NoError(t, err)
	require.NotNil(t, obs.Temperature)
	assert.Equal(t, 11.0, *obs.Temperature)
	assert.Equal(t, 15.0, *obs.WindSpeed)
	assert.Nil(t, obs.Rainfall)
	require.NotNil(t, obs.Timestamp)
	assert.Equal(t, "10:00", *obs.Timestamp)
}

func TestParse_NonFiniteStringsAreAbsent(t *testing.T) {
	obs, err := Parse([]byte(`{"observations": [{"airTemperature": "NaN", "windSpeed": "Inf", "rainfall": "0.2"}]}`))
	require.NoError(t, err)
	assert.Nil(t, obs.Temperature)
	assert.Nil(t, obs.WindSpeed)
	require.NotNil(t, obs.Rainfall)
	assert.Equal(t, 0.2, *obs.Rainfall)
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "no observations", body: `{"station": "dublin"}`},
		{name: "empty observations", body: `{"observations": []}`},
		{name: "observations not an array", body: `{"observations": {}}`},
		{name: "not json", body: `<html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := Parse([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, &Observation{}, obs)
		})
	}
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	obs, err := NewClient(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11.0, *obs.Temperature)
}

func TestClient_FetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Weather fetch failed (503)", err.Error())
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", 0)
	assert.Equal(t, DefaultURL, c.url)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}
