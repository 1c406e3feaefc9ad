package services

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

type TrendResult struct {
	Direction TrendDirection `json:"direction"`
	Magnitude int            `json:"magnitude"`
}

// Trend compares the two most recent records of a timestamp-ascending history.
// Earlier records are ignored.
func Trend(history []*AssessmentRecord) TrendResult {
	if len(history) < 2 {
		return TrendResult{Direction: TrendStable}
	}
	prev := history[len(history)-2].Score
	latest := history[len(history)-1].Score
	diff := latest - prev
	switch {
	case diff > 0:
		return TrendResult{Direction: TrendUp, Magnitude: diff}
	case diff < 0:
		return TrendResult{Direction: TrendDown, Magnitude: -diff}
	default:
		return TrendResult{Direction: TrendStable}
	}
}
