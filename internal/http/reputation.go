package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/venue-directory/internal/domain"
	"github.com/Clark-Hu/venue-directory/internal/ratingsfeed"
	"github.com/Clark-Hu/venue-directory/internal/repository"
	"github.com/Clark-Hu/venue-directory/internal/reputation"
)

type platformRequest struct {
	Rating      *float64 `json:"rating"`
	ReviewCount *int64   `json:"reviewCount"`
}

type platformResponse struct {
	Source      string    `json:"source"`
	Rating      *float64  `json:"rating"`
	ReviewCount *int64    `json:"reviewCount"`
	NativeMax   *float64  `json:"nativeMax,omitempty"`
	Configured  bool      `json:"configured"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type reputationDetailResponse struct {
	Slug       string                    `json:"slug"`
	Reputation reputationResponse        `json:"reputation"`
	Stale      bool                      `json:"stale"`
	Breakdown  []reputation.Contribution `json:"breakdown"`
	Platforms  []platformResponse        `json:"platforms"`
}

type recomputeResponse struct {
	Slug       string                    `json:"slug"`
	Reputation reputationResponse        `json:"reputation"`
	Breakdown  []reputation.Contribution `json:"breakdown"`
}

type platformUpdateResponse struct {
	Platform   platformResponse   `json:"platform"`
	Reputation reputationResponse `json:"reputation"`
}

type skippedSource struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

type syncResponse struct {
	Slug       string             `json:"slug"`
	Synced     []string           `json:"synced"`
	Skipped    []skippedSource    `json:"skipped"`
	Reputation reputationResponse `json:"reputation"`
}

type sourceResponse struct {
	ID            string   `json:"id"`
	NativeMax     float64  `json:"nativeMax"`
	Primary       bool     `json:"primary"`
	PrimaryWeight *float64 `json:"primaryWeight,omitempty"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources := s.scorer.Aggregator().Sources()
	resp := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		item := sourceResponse{ID: string(src.ID), NativeMax: src.NativeMax, Primary: src.Primary}
		if src.Primary {
			weight := src.PrimaryWeight
			item.PrimaryWeight = &weight
		}
		resp = append(resp, item)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	listing, ok := s.listingFromPath(w, r)
	if !ok {
		return
	}

	ratings, err := s.repo.PlatformRatings.ListByListing(r.Context(), listing.ID)
	if err != nil {
		s.logger.Printf("list platform ratings for %s failed: %v", listing.Slug, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch reputation")
		return
	}

	live, err := s.scorer.Aggregator().Aggregate(s.scorer.Signals(ratings))
	if err != nil {
		s.logger.Printf("live reputation for %s failed: %v", listing.Slug, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Stored ratings no longer satisfy the source table")
		return
	}

	platforms := make([]platformResponse, 0, len(ratings))
	for _, pr := range ratings {
		platforms = append(platforms, s.toPlatformResponse(pr))
	}
	s.respondJSON(w, http.StatusOK, reputationDetailResponse{
		Slug:       listing.Slug,
		Reputation: toReputationResponse(listing.Reputation),
		Stale:      isStale(listing.Reputation, live),
		Breakdown:  nonNilBreakdown(live.Breakdown),
		Platforms:  platforms,
	})
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if !s.requireBearer(w, r) {
		return
	}
	listing, ok := s.listingFromPath(w, r)
	if !ok {
		return
	}

	updated, res, ok := s.recompute(r.Context(), w, listing)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, recomputeResponse{
		Slug:       updated.Slug,
		Reputation: toReputationResponse(updated.Reputation),
		Breakdown:  nonNilBreakdown(res.Breakdown),
	})
}

func (s *Server) handlePutPlatform(w http.ResponseWriter, r *http.Request) {
	if !s.requireBearer(w, r) {
		return
	}
	listing, ok := s.listingFromPath(w, r)
	if !ok {
		return
	}
	source := sourceParam(r)

	var req platformRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	sig := reputation.Signal{Rating: req.Rating, ReviewCount: req.ReviewCount}
	if err := s.scorer.Aggregator().Check(reputation.SourceID(source), sig); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	stored, inserted, err := s.repo.PlatformRatings.Upsert(r.Context(), repository.PlatformRatingUpsertParams{
		ListingID:   listing.ID,
		Source:      source,
		Rating:      req.Rating,
		ReviewCount: req.ReviewCount,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("upsert platform rating error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store platform rating")
		return
	}

	updated, _, ok := s.recompute(r.Context(), w, listing)
	if !ok {
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, platformUpdateResponse{
		Platform:   s.toPlatformResponse(stored),
		Reputation: toReputationResponse(updated.Reputation),
	})
}

func (s *Server) handleDeletePlatform(w http.ResponseWriter, r *http.Request) {
	if !s.requireBearer(w, r) {
		return
	}
	listing, ok := s.listingFromPath(w, r)
	if !ok {
		return
	}

	if err := s.repo.PlatformRatings.Delete(r.Context(), listing.ID, sourceParam(r)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("delete platform rating error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete platform rating")
		return
	}

	updated, res, ok := s.recompute(r.Context(), w, listing)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, recomputeResponse{
		Slug:       updated.Slug,
		Reputation: toReputationResponse(updated.Reputation),
		Breakdown:  nonNilBreakdown(res.Breakdown),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.requireBearer(w, r) {
		return
	}
	if s.feed == nil {
		s.respondError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Ratings feed is not configured")
		return
	}
	listing, ok := s.listingFromPath(w, r)
	if !ok {
		return
	}

	result, err := s.syncFromFeed(r.Context(), listing)
	if err != nil {
		if errors.Is(err, ratingsfeed.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Listing not found in ratings feed")
			return
		}
		s.logger.Printf("ratings feed sync for %s failed: %v", listing.Slug, err)
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Ratings feed request failed")
		return
	}

	updated, _, ok := s.recompute(r.Context(), w, listing)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, syncResponse{
		Slug:       updated.Slug,
		Synced:     result.synced,
		Skipped:    result.skipped,
		Reputation: toReputationResponse(updated.Reputation),
	})
}

type syncResult struct {
	synced  []string
	skipped []skippedSource
}

// syncFromFeed stores every valid external rating the feed reports for the
// listing. The first-party source is never overwritten from the feed.
func (s *Server) syncFromFeed(ctx context.Context, listing domain.Listing) (syncResult, error) {
	result := syncResult{synced: []string{}, skipped: []skippedSource{}}

	fetchCtx, cancel := context.WithTimeout(ctx, s.feedDeadline())
	defer cancel()
	snap, err := s.feed.Fetch(fetchCtx, listing.Slug)
	if err != nil {
		return result, err
	}

	ids := make([]string, 0, len(snap.Signals))
	for id := range snap.Signals {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	agg := s.scorer.Aggregator()
	for _, id := range ids {
		sourceID := reputation.SourceID(id)
		sig := snap.Signals[sourceID]
		if scale, ok := agg.Source(sourceID); ok && scale.Primary {
			result.skipped = append(result.skipped, skippedSource{Source: id, Reason: "first-party source is managed locally"})
			continue
		}
		if err := agg.Check(sourceID, sig); err != nil {
			result.skipped = append(result.skipped, skippedSource{Source: id, Reason: err.Error()})
			continue
		}
		if _, _, err := s.repo.PlatformRatings.Upsert(ctx, repository.PlatformRatingUpsertParams{
			ListingID:   listing.ID,
			Source:      id,
			Rating:      sig.Rating,
			ReviewCount: sig.ReviewCount,
		}); err != nil {
			return result, fmt.Errorf("store %s rating: %w", id, err)
		}
		result.synced = append(result.synced, id)
	}
	return result, nil
}

func (s *Server) feedDeadline() time.Duration {
	secs := s.cfg.RatingsFeedTimeoutSecs
	if secs <= 0 {
		secs = 5
	}
	return time.Duration(secs*(s.cfg.RatingsFeedMaxRetries+1)) * time.Second
}

// recompute stores a fresh reputation for the listing. It writes the error
// response and returns false on failure.
func (s *Server) recompute(ctx context.Context, w http.ResponseWriter, listing domain.Listing) (domain.Listing, reputation.Result, bool) {
	updated, res, err := s.scorer.Listing(ctx, listing.ID)
	if err != nil {
		if errors.Is(err, reputation.ErrInvalidConfiguration) {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
			return domain.Listing{}, reputation.Result{}, false
		}
		s.logger.Printf("recompute reputation for %s failed: %v", listing.Slug, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to recompute reputation")
		return domain.Listing{}, reputation.Result{}, false
	}
	return updated, res, true
}

func (s *Server) toPlatformResponse(pr domain.PlatformRating) platformResponse {
	resp := platformResponse{
		Source:      pr.Source,
		Rating:      pr.Rating,
		ReviewCount: pr.ReviewCount,
		UpdatedAt:   pr.UpdatedAt,
	}
	if scale, ok := s.scorer.Aggregator().Source(reputation.SourceID(pr.Source)); ok {
		nativeMax := scale.NativeMax
		resp.NativeMax = &nativeMax
		resp.Configured = true
	}
	return resp
}

func sourceParam(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, "source")))
}

// isStale reports whether the stored reputation differs from a live computation.
func isStale(stored domain.Reputation, live reputation.Result) bool {
	if stored.ComputedAt == nil {
		return true
	}
	if !equalFloatPtr(stored.CompositeRating, live.CompositeRating) || !equalIntPtr(stored.TrustScore, live.TrustScore) {
		return true
	}
	return stored.TotalReviews != live.TotalReviews || stored.Confidence != live.Confidence
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nonNilBreakdown(in []reputation.Contribution) []reputation.Contribution {
	if in == nil {
		return []reputation.Contribution{}
	}
	return in
}
