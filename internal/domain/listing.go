package domain

import "time"

// Reputation is the persisted outcome of the last scoring run for a listing.
type Reputation struct {
	CompositeRating *float64
	TotalReviews    int64
	Confidence      int
	TrustScore      *int
	ComputedAt      *time.Time
}

// Listing represents a venue in the directory.
type Listing struct {
	ID         string
	Slug       string
	Name       string
	Category   string
	City       *string
	Website    *string
	Reputation Reputation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
