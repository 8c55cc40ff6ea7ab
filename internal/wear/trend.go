package wear

import "math"

// ConditionPoint is one persisted wear-condition observation.
type ConditionPoint struct {
	Sol       float64 `json:"sol"`
	Condition float64 `json:"condition"`
}

// TrendProjection estimates when a unit wears out based on its history.
type TrendProjection struct {
	SolsRemaining *float64 `json:"sols_remaining,omitempty"`
	RatePerSol    float64  `json:"rate_per_sol"` // condition points lost per sol
	Confidence    string   `json:"confidence"`   // "low", "medium", "high"
}

// PredictTrend computes a linear regression on condition history and
// projects the sols remaining until the unit is worn out (condition 0).
// Returns nil if there is insufficient data.
func PredictTrend(points []ConditionPoint) *TrendProjection {
	if len(points) < 3 {
		return nil
	}

	first := points[0].Sol
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Sol - first
		ys[i] = p.Condition
	}

	slope, _ := linearRegression(xs, ys)

	dataSpanSols := xs[len(xs)-1]
	currentCondition := points[len(points)-1].Condition

	proj := &TrendProjection{
		RatePerSol: -slope,
		Confidence: trendConfidence(dataSpanSols),
	}

	// Only project a wear-out date if condition is actually declining.
	if slope < -0.0001 {
		sols := currentCondition / -slope
		if sols > 0 {
			proj.SolsRemaining = &sols
		}
	}

	return proj
}

// linearRegression computes slope and intercept for y = slope*x + intercept.
func linearRegression(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
	}

	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-10 {
		return 0, sumY / n
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func trendConfidence(dataSpanSols float64) string {
	switch {
	case dataSpanSols >= 100:
		return "high"
	case dataSpanSols >= 30:
		return "medium"
	default:
		return "low"
	}
}
