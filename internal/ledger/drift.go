package ledger

import "math"

// Polarity thresholds for the algorithmic witness. Similarity at or
// above the coherent threshold means the response stayed with the
// prompt; below the gap threshold it drifted; between the two is an
// ambiguous zone left unclassified rather than forced to a side. Both
// bounds are inclusive on the lower side: exactly 0.4 is coherent,
// exactly 0.2 is unclassified.
const (
	ThresholdCoherent = 0.4
	ThresholdGap      = 0.2
)

// Classify maps a cosine similarity to a polarity.
func Classify(similarity float64) Polarity {
	switch {
	case similarity >= ThresholdCoherent:
		return PolarityCoherent
	case similarity >= ThresholdGap:
		return PolarityUnclassified
	default:
		return PolarityGap
	}
}

// round4 keeps evidence values readable in the JSONL.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
