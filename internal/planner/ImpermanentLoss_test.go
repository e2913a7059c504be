package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateImpermanentLoss(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  float64
	}{
		{"unchanged price", 0, 0},
		{"price doubles", 1, -5.7191},
		{"price halves", -0.5, -5.7191},
		{"price quadruples", 3, -20.0},
		{"price to zero", -1, -100},
		{"past total loss", -2, -100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, EstimateImpermanentLoss(tc.ratio), 0.001)
		})
	}

	t.Run("non-finite input degrades to zero", func(t *testing.T) {
		assert.Zero(t, EstimateImpermanentLoss(math.NaN()))
		assert.Zero(t, EstimateImpermanentLoss(math.Inf(1)))
		assert.Zero(t, EstimateImpermanentLoss(math.Inf(-1)))
	})

	t.Run("never positive", func(t *testing.T) {
		for _, ratio := range []float64{-0.99, -0.5, -0.1, 0, 0.1, 0.5, 1, 5, 100} {
			assert.LessOrEqual(t, EstimateImpermanentLoss(ratio), 0.0, "ratio=%v", ratio)
		}
	})
}

func TestFeeVsImpermanentLoss(t *testing.T) {
	// 36.5% APR over 10 days earns 1%, net against a 5% loss.
	assert.InDelta(t, -4.0, FeeVsImpermanentLoss(36.5, 10, -5), 1e-9)

	// Fees eventually outrun the loss.
	assert.InDelta(t, 5.0, FeeVsImpermanentLoss(36.5, 100, -5), 1e-9)

	// Zero holding time nets to the raw loss.
	assert.InDelta(t, -5.0, FeeVsImpermanentLoss(36.5, 0, -5), 1e-9)

	// Non-finite fee inputs fall back to the loss estimate alone.
	assert.InDelta(t, -5.0, FeeVsImpermanentLoss(math.NaN(), 10, -5), 1e-9)
	assert.InDelta(t, -5.0, FeeVsImpermanentLoss(36.5, math.Inf(1), -5), 1e-9)
}
