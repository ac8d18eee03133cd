package reputation

import "math"

// Signal is one rating observation from one source. Either field may be nil.
type Signal struct {
	Rating      *float64 `json:"rating" yaml:"rating"`
	ReviewCount *int64   `json:"reviewCount" yaml:"reviewCount"`
}

// Signals maps each source to its current observation. Sources without an entry
// are treated as having neither a rating nor a review count.
type Signals map[SourceID]Signal

// NewSignal builds a Signal from plain values.
func NewSignal(rating float64, reviewCount int64) Signal {
	return Signal{Rating: &rating, ReviewCount: &reviewCount}
}

// Valid reports whether both the rating and the review count are present and positive.
func (s Signal) Valid() bool {
	return s.Rating != nil && *s.Rating > 0 && s.ReviewCount != nil && *s.ReviewCount > 0
}

func (s Signal) reviews() int64 {
	if s.ReviewCount == nil {
		return 0
	}
	return *s.ReviewCount
}

// validated is a valid signal paired with its source configuration.
type validated struct {
	scale  SourceScale
	rating float64
}

// partition splits the input into the primary signal (nil when invalid) and the
// valid external signals in configuration order, and sums review counts across
// every configured source.
func (a *Aggregator) partition(signals Signals) (*validated, []validated, int64) {
	var (
		primary   *validated
		externals []validated
		total     int64
	)
	for _, scale := range a.sources {
		sig := signals[scale.ID]
		total = addReviews(total, sig.reviews())
		if !sig.Valid() {
			continue
		}
		v := validated{scale: scale, rating: *sig.Rating}
		if scale.Primary {
			primary = &v
			continue
		}
		externals = append(externals, v)
	}
	return primary, externals, total
}

// addReviews sums non-negative review counts, saturating at math.MaxInt64.
func addReviews(total, n int64) int64 {
	if n > math.MaxInt64-total {
		return math.MaxInt64
	}
	return total + n
}

// checkSignal rejects values no well-behaved caller can produce: a rating that is
// not finite, negative or above the source's native maximum, and a negative
// review count.
func checkSignal(scale SourceScale, sig Signal) error {
	if sig.Rating != nil {
		r := *sig.Rating
		switch {
		case math.IsNaN(r) || math.IsInf(r, 0):
			return invalidf(scale.ID, "rating must be a finite number")
		case r < 0:
			return invalidf(scale.ID, "rating %v is negative", r)
		case r > scale.NativeMax:
			return invalidf(scale.ID, "rating %v exceeds native maximum %v", r, scale.NativeMax)
		}
	}
	if sig.ReviewCount != nil && *sig.ReviewCount < 0 {
		return invalidf(scale.ID, "review count %d is negative", *sig.ReviewCount)
	}
	return nil
}
