package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token    string
		expected int64
	}{
		{"1m", 60},
		{"3m", 180},
		{"15m", 900},
		{"1h", 3600},
		{"4h", 14400},
		{"1d", 86400},
		{"", 60},
		{"m", 60},
		{"1x", 60},
		{"abc", 60},
		{"0m", 60},
		{"-5m", 60},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.expected, IntervalSeconds(tt.token))
		})
	}
}
