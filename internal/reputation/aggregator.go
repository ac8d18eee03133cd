package reputation

import (
	"math"
	"sort"
)

// Contribution records how one valid source fed the composite rating.
type Contribution struct {
	Source     SourceID `json:"source"`
	Normalized float64  `json:"normalized"`
	Weight     float64  `json:"weight"`
}

// Result is the outcome of one aggregation.
type Result struct {
	CompositeRating *float64       `json:"compositeRating"`
	TotalReviews    int64          `json:"totalReviews"`
	Confidence      int            `json:"confidence"`
	TrustScore      *int           `json:"trustScore"`
	Breakdown       []Contribution `json:"breakdown,omitempty"`
}

// Aggregator scores Signals against a fixed source table.
type Aggregator struct {
	sources    []SourceScale
	index      map[SourceID]SourceScale
	primary    SourceScale
	saturation int64
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithConfidenceSaturation sets the review volume at which confidence reaches 100%.
func WithConfidenceSaturation(reviews int64) Option {
	return func(a *Aggregator) {
		a.saturation = reviews
	}
}

// NewAggregator validates the source table and returns an aggregator bound to it.
// The table must contain exactly one primary source.
func NewAggregator(sources []SourceScale, opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		sources:    make([]SourceScale, 0, len(sources)),
		index:      make(map[SourceID]SourceScale, len(sources)),
		saturation: DefaultConfidenceSaturation,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.saturation <= 0 {
		return nil, invalidf("", "confidence saturation must be positive, got %d", a.saturation)
	}

	primaries := 0
	for _, s := range sources {
		if s.ID == "" {
			return nil, invalidf("", "source id must not be empty")
		}
		if _, dup := a.index[s.ID]; dup {
			return nil, invalidf(s.ID, "duplicate source")
		}
		if math.IsNaN(s.NativeMax) || math.IsInf(s.NativeMax, 0) || s.NativeMax <= 0 {
			return nil, invalidf(s.ID, "native maximum must be positive, got %v", s.NativeMax)
		}
		if s.Primary {
			primaries++
			if !(s.PrimaryWeight > 0 && s.PrimaryWeight < 1) {
				return nil, invalidf(s.ID, "primary weight must be within (0, 1), got %v", s.PrimaryWeight)
			}
			a.primary = s
		}
		a.sources = append(a.sources, s)
		a.index[s.ID] = s
	}
	if primaries != 1 {
		return nil, invalidf("", "exactly one primary source required, got %d", primaries)
	}
	return a, nil
}

// Default returns an aggregator for DefaultSources. It panics only if the
// compiled-in table is broken.
func Default() *Aggregator {
	a, err := NewAggregator(DefaultSources())
	if err != nil {
		panic(err)
	}
	return a
}

// Sources returns a copy of the configured source table.
func (a *Aggregator) Sources() []SourceScale {
	out := make([]SourceScale, len(a.sources))
	copy(out, a.sources)
	return out
}

// Source looks up one configured source.
func (a *Aggregator) Source(id SourceID) (SourceScale, bool) {
	s, ok := a.index[id]
	return s, ok
}

// Check validates a single signal for a source without scoring it.
func (a *Aggregator) Check(id SourceID, sig Signal) error {
	scale, ok := a.index[id]
	if !ok {
		return invalidf(id, "unknown source")
	}
	return checkSignal(scale, sig)
}

// Aggregate scores the given signals. It only fails on contract violations;
// any mix of missing, zero and valid data produces a Result.
func (a *Aggregator) Aggregate(signals Signals) (Result, error) {
	if err := a.checkAll(signals); err != nil {
		return Result{}, err
	}

	primary, externals, total := a.partition(signals)
	if primary == nil && len(externals) == 0 {
		// Review volume is reported as zero here even when unrated review counts exist.
		return Result{}, nil
	}

	composite, breakdown := a.combine(primary, externals)
	confidence := a.confidence(total)
	trust := trustScore(composite, confidence)

	return Result{
		CompositeRating: &composite,
		TotalReviews:    total,
		Confidence:      confidence,
		TrustScore:      &trust,
		Breakdown:       breakdown,
	}, nil
}

func (a *Aggregator) checkAll(signals Signals) error {
	for _, scale := range a.sources {
		if sig, ok := signals[scale.ID]; ok {
			if err := checkSignal(scale, sig); err != nil {
				return err
			}
		}
	}
	var unknown []string
	for id := range signals {
		if _, ok := a.index[id]; !ok {
			unknown = append(unknown, string(id))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	// Sorted so repeated calls report the same source.
	sort.Strings(unknown)
	return invalidf(SourceID(unknown[0]), "unknown source")
}

// Normalize maps a rating from the source's native scale onto the common scale.
func Normalize(rating float64, scale SourceScale) float64 {
	return rating * (CommonScale / scale.NativeMax)
}

// combine applies the weighting policy to at least one valid signal and returns
// the rounded composite with the weights used.
func (a *Aggregator) combine(primary *validated, externals []validated) (float64, []Contribution) {
	breakdown := make([]Contribution, 0, len(externals)+1)

	var externalWeight float64
	switch {
	case len(externals) == 0:
		breakdown = append(breakdown, contribution(*primary, 1))
	case primary == nil:
		externalWeight = 1 / float64(len(externals))
	default:
		breakdown = append(breakdown, contribution(*primary, a.primary.PrimaryWeight))
		externalWeight = (1 - a.primary.PrimaryWeight) / float64(len(externals))
	}
	for _, ext := range externals {
		breakdown = append(breakdown, contribution(ext, externalWeight))
	}

	var sum float64
	for _, c := range breakdown {
		sum += c.Normalized * c.Weight
	}
	return roundHalfUp(sum, 2), breakdown
}

func contribution(v validated, weight float64) Contribution {
	return Contribution{
		Source:     v.scale.ID,
		Normalized: Normalize(v.rating, v.scale),
		Weight:     weight,
	}
}

func (a *Aggregator) confidence(totalReviews int64) int {
	ratio := math.Min(float64(totalReviews)/float64(a.saturation), 1)
	return int(math.Round(ratio * 100))
}

func trustScore(composite float64, confidence int) int {
	trust := int(math.Round(composite / CommonScale * float64(confidence)))
	if trust > 100 {
		trust = 100
	}
	return trust
}

func roundHalfUp(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Floor(value*scale+0.5) / scale
}
