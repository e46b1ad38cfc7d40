package facematch

// Band is a display-only confidence label for a match.
type Band string

const (
	BandStrong   Band = "strong"
	BandPossible Band = "possible"
	BandWeak     Band = "weak"
)

// Classify labels a similarity against the outlier thresholds. It never
// influences which matches are stored.
func Classify(similarity, high, low float64) Band {
	switch {
	case similarity >= high:
		return BandStrong
	case similarity < low:
		return BandWeak
	default:
		return BandPossible
	}
}
