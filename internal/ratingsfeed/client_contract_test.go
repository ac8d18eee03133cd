package ratingsfeed

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"
)

// TestHTTPClientSmoke checks that the client can parse at least one record from
// a running feed (for example cmd/ratingsfeed-mock).
func TestHTTPClientSmoke(t *testing.T) {
	baseURL := os.Getenv("RATINGSFEED_URL")
	if baseURL == "" {
		t.Skip("RATINGSFEED_URL not provided")
	}
	slug := os.Getenv("RATINGSFEED_SMOKE_SLUG")
	if slug == "" {
		slug = "cafe-roma"
	}
	client, err := NewHTTPClient(baseURL, os.Getenv("RATINGSFEED_API_KEY"), DefaultOptions(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := client.Fetch(ctx, slug)
	if err != nil {
		t.Fatalf("fetch feed data: %v", err)
	}
	if len(snap.Signals) == 0 {
		t.Fatalf("unexpected empty snapshot: %+v", snap)
	}
}
