package domain

import "time"

// PlatformRating is the latest rating/review-count pair a platform reports for a listing.
// Either value may be absent.
type PlatformRating struct {
	ListingID   string
	Source      string
	Rating      *float64
	ReviewCount *int64
	UpdatedAt   time.Time
}
