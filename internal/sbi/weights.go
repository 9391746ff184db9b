package sbi

// WeightSet is the blend applied to the component scores. Weights always
// sum to 1.
type WeightSet struct {
	ATR   float64
	Slope float64
	ADX   float64
}

// BlendWeights returns the component blend for a trend of the given age.
// Young trends lean on volatility alone; slope and ADX phase in as the
// trend proves itself.
func BlendWeights(daysInTrend int) WeightSet {
	switch {
	case daysInTrend <= 1:
		return WeightSet{ATR: 1.0}
	case daysInTrend == 2:
		return WeightSet{ATR: 0.8, Slope: 0.2}
	case daysInTrend == 3:
		return WeightSet{ATR: 0.6, Slope: 0.4}
	case daysInTrend <= 5:
		return WeightSet{ATR: 0.4, Slope: 0.4, ADX: 0.2}
	default:
		return WeightSet{ATR: 0.3, Slope: 0.4, ADX: 0.3}
	}
}
