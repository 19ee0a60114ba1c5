package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		want    float64
	}{
		{"no concession", 100, 0},
		{"halfway", 90, 0.5},
		{"at floor", 80, 1},
		{"below floor clamps", 60, 1},
		{"above list clamps", 130, 0},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Progress(100, tt.current, 80)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, got, Progress(100, tt.current, 80))
		})
	}
}

func TestProgress_DegenerateSpan(t *testing.T) {
	assert.Equal(t, 0.0, Progress(80, 80, 80))
	assert.Equal(t, 0.0, Progress(80, 70, 90))
}
