package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAntiSnipingPolicy(t *testing.T) {
	end := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := defaultSettings()

	tests := []struct {
		name      string
		now       time.Time
		window    int64
		extension int64
		wantEnd   time.Time
		extended  bool
	}{
		{"inside window resets to now plus extension", end.Add(-200 * time.Second), 300, 300, end.Add(100 * time.Second), true},
		{"outside window", end.Add(-400 * time.Second), 300, 300, end, false},
		{"exactly at window edge", end.Add(-300 * time.Second), 300, 300, end, false},
		{"short extension never shortens", end.Add(-200 * time.Second), 300, 60, end, false},
		{"disabled", end.Add(-10 * time.Second), 0, 0, end, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.AntiSnipeWindow = tt.window
			s.AntiSnipeExtension = tt.extension
			got, extended := AntiSnipingPolicy{}.Apply(tt.now, end, s)
			assert.Equal(t, tt.extended, extended)
			assert.True(t, tt.wantEnd.Equal(got), "want %s got %s", tt.wantEnd, got)
		})
	}
}
