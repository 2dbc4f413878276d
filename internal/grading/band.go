package grading

// Band is a display-only classification of a percentage score.
type Band struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var (
	BandExcellent = Band{Key: "excellent", Label: "Excellent"}
	BandGood      = Band{Key: "good", Label: "Good"}
	BandAverage   = Band{Key: "average", Label: "Average"}
	BandLow       = Band{Key: "needs_improvement", Label: "Needs improvement"}
)

// BandFor buckets score into [80,100], [60,80), [40,60) and [0,40).
func BandFor(score int) Band {
	switch {
	case score >= 80:
		return BandExcellent
	case score >= 60:
		return BandGood
	case score >= 40:
		return BandAverage
	default:
		return BandLow
	}
}
