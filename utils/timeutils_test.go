package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEpochSeconds(t *testing.T) {
	assert.Equal(t, 0.0, EpochSeconds(time.Time{}))
	assert.Equal(t, 1700000000.5, EpochSeconds(time.Unix(1700000000, 500_000_000)))
}

func TestIso8601(t *testing.T) {
	assert.Empty(t, Iso8601(time.Time{}))
	assert.Equal(t, "2023-11-14T22:13:20Z", Iso8601(time.Unix(1700000000, 0)))
	assert.Equal(t, "2023-11-14T22:13:20Z", Iso8601FromUnixSeconds(1700000000))
	assert.Empty(t, Iso8601FromUnixSeconds(0))
}

func TestValidUntilFrom(t *testing.T) {
	base := time.Unix(1700000000, 0)
	assert.Equal(t, "2023-11-14T22:14:20Z", ValidUntilFrom(base, time.Minute))
	assert.Empty(t, ValidUntilFrom(base, 0))
	assert.Empty(t, ValidUntilFrom(time.Time{}, time.Minute))
}
