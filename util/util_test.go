package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMinInt(t *testing.T) {
	assert.Equal(t, 2, MinInt(2, 5))
	assert.Equal(t, 2, MinInt(5, 2))
	assert.Equal(t, -1, MinInt(-1, 0))
}

func TestStringIn(t *testing.T) {
	assert.True(t, StringIn([]string{"a", "b"}, "b"))
	assert.False(t, StringIn([]string{"a", "b"}, "c"))
	assert.False(t, StringIn(nil, "a"))
}

func TestHoursBetween(t *testing.T) {
	from := time.Date(2020, 5, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(36 * time.Hour)
	assert.Equal(t, 36.0, HoursBetween(from, to))
	assert.Equal(t, -36.0, HoursBetween(to, from))
}
