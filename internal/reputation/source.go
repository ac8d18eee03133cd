// Package reputation combines independently sourced platform ratings into a
// composite rating, a confidence percentage and a trust percentage.
//
// The aggregator is a pure function of its input: it performs no I/O, holds no
// mutable state after construction and may be shared across goroutines.
package reputation

// SourceID identifies a rating platform.
type SourceID string

const (
	SourceDirectory   SourceID = "directory"
	SourceGoogle      SourceID = "google"
	SourceTripadvisor SourceID = "tripadvisor"
	SourceYelp        SourceID = "yelp"
	SourceBooking     SourceID = "booking"
)

// CommonScale is the maximum of the scale every rating is normalized onto.
const CommonScale = 5.0

// DefaultPrimaryWeight is the share of the composite given to the first-party source
// whenever at least one external source is also valid.
const DefaultPrimaryWeight = 0.4

// DefaultConfidenceSaturation is the review volume at which confidence reaches 100%.
const DefaultConfidenceSaturation = 50

// SourceScale describes one configured rating source.
type SourceScale struct {
	ID        SourceID
	NativeMax float64
	Primary   bool
	// PrimaryWeight is only read for the primary source.
	PrimaryWeight float64
}

// DefaultSources returns the compiled-in source table: the first-party directory
// rating plus four external platforms, one of which rates out of ten.
func DefaultSources() []SourceScale {
	return []SourceScale{
		{ID: SourceDirectory, NativeMax: 5, Primary: true, PrimaryWeight: DefaultPrimaryWeight},
		{ID: SourceGoogle, NativeMax: 5},
		{ID: SourceTripadvisor, NativeMax: 5},
		{ID: SourceYelp, NativeMax: 5},
		{ID: SourceBooking, NativeMax: 10},
	}
}
