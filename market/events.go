package market

// Impact tiers a macro event by how hard it moves prices.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// VolatilityBoost is the multiplier applied to the aligned bar's volatility.
func (i Impact) VolatilityBoost() float64 {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 1.5
	}
	return 1
}

// MacroEvent is a scheduled calendar event aligned to a generated bar.
type MacroEvent struct {
	ID          string `json:"id"`
	Time        int64  `json:"time"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
}
