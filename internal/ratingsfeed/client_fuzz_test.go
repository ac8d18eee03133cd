package ratingsfeed

import (
	"testing"
	"time"
)

func FuzzConvertToSnapshot(f *testing.F) {
	f.Add("google", 4.5, int64(200), "cafe", int64(1714557600))
	f.Add("", 0.0, int64(0), "", int64(0))

	f.Fuzz(func(t *testing.T, source string, rating float64, reviews int64, slug string, unix int64) {
		payload := apiResponse{
			Slug: slug,
			Platforms: []platformPayload{
				{Source: source, Rating: &rating, ReviewCount: &reviews},
				{Source: source},
			},
		}
		if unix%2 == 0 {
			at := time.Unix(unix, 0)
			payload.FetchedAt = &at
		}

		snap := convertToSnapshot("requested", payload)
		if snap == nil {
			t.Fatalf("convertToSnapshot returned nil")
		}
		if snap.Slug == "" {
			t.Fatalf("slug should never be empty")
		}
		if len(snap.Signals) > 1 {
			t.Fatalf("duplicate sources should collapse, got %d", len(snap.Signals))
		}
		if snap.FetchedAt.Location() != time.UTC {
			t.Fatalf("fetchedAt should be UTC")
		}
		for id := range snap.Signals {
			if id == "" {
				t.Fatalf("empty source id kept")
			}
		}
	})
}
