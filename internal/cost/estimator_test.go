package cost

import (
	"math"
	"testing"
)

func TestEstimate(t *testing.T) {
	e := NewEstimator(0.05)

	tests := []struct {
		name            string
		sizeBytes       int64
		durationSeconds int64
		want            float64
	}{
		{
			name:            "one GB for one month",
			sizeBytes:       1 << 30,
			durationSeconds: 86400 * 30,
			want:            0.05,
		},
		{
			name:            "half GB for two months",
			sizeBytes:       1 << 29,
			durationSeconds: 86400 * 60,
			want:            0.05,
		},
		{
			name:            "zero size",
			sizeBytes:       0,
			durationSeconds: 86400,
			want:            0,
		},
		{
			name:            "zero duration",
			sizeBytes:       1 << 30,
			durationSeconds: 0,
			want:            0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(tt.sizeBytes, tt.durationSeconds)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Estimate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEstimator_DefaultRate(t *testing.T) {
	e := NewEstimator(0)
	got := e.Estimate(1<<30, 86400*30)
	if math.Abs(got-DefaultRatePerGBMonth) > 1e-9 {
		t.Errorf("Estimate() with default rate = %v, want %v", got, DefaultRatePerGBMonth)
	}
}
