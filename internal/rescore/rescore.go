// Package rescore loads stored platform ratings, runs the reputation aggregator
// and persists the outcome on the listing.
package rescore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/venue-directory/internal/domain"
	"github.com/Clark-Hu/venue-directory/internal/metrics"
	"github.com/Clark-Hu/venue-directory/internal/reputation"
)

// ListingStore is the listing persistence the service needs.
type ListingStore interface {
	ListIDs(ctx context.Context) ([]string, error)
	SaveReputation(ctx context.Context, id string, rep domain.Reputation) (domain.Listing, error)
}

// RatingStore is the platform rating persistence the service needs.
type RatingStore interface {
	ListByListing(ctx context.Context, listingID string) ([]domain.PlatformRating, error)
}

// Summary reports the outcome of a batch run.
type Summary struct {
	Total  int `json:"total"`
	Scored int `json:"scored"`
	NoData int `json:"noData"`
	Failed int `json:"failed"`
}

// Service recomputes listing reputations.
type Service struct {
	listings ListingStore
	ratings  RatingStore
	agg      *reputation.Aggregator
	logger   *log.Logger
	now      func() time.Time
}

// New constructs a Service.
func New(listings ListingStore, ratings RatingStore, agg *reputation.Aggregator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		listings: listings,
		ratings:  ratings,
		agg:      agg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Aggregator returns the aggregator the service scores with.
func (s *Service) Aggregator() *reputation.Aggregator {
	return s.agg
}

// Signals converts stored platform ratings into aggregator input. Ratings from
// sources the aggregator is not configured for are skipped.
func (s *Service) Signals(ratings []domain.PlatformRating) reputation.Signals {
	signals := make(reputation.Signals, len(ratings))
	for _, pr := range ratings {
		id := reputation.SourceID(pr.Source)
		if _, ok := s.agg.Source(id); !ok {
			s.logger.Printf("rescore: skipping unconfigured source %q for listing %s", pr.Source, pr.ListingID)
			continue
		}
		signals[id] = reputation.Signal{Rating: pr.Rating, ReviewCount: pr.ReviewCount}
	}
	return signals
}

// Score computes the current result for a listing without saving it.
func (s *Service) Score(ctx context.Context, listingID string) (reputation.Result, error) {
	ratings, err := s.ratings.ListByListing(ctx, listingID)
	if err != nil {
		return reputation.Result{}, fmt.Errorf("load platform ratings: %w", err)
	}
	res, err := s.agg.Aggregate(s.Signals(ratings))
	if err != nil {
		return reputation.Result{}, fmt.Errorf("score listing %s: %w", listingID, err)
	}
	return res, nil
}

// Listing recomputes and stores the reputation of one listing.
func (s *Service) Listing(ctx context.Context, listingID string) (domain.Listing, reputation.Result, error) {
	start := time.Now()

	res, err := s.Score(ctx, listingID)
	if err != nil {
		metrics.RecordRecompute("error", time.Since(start))
		return domain.Listing{}, reputation.Result{}, err
	}

	listing, err := s.listings.SaveReputation(ctx, listingID, ToReputation(res, s.now()))
	if err != nil {
		metrics.RecordRecompute("error", time.Since(start))
		return domain.Listing{}, reputation.Result{}, fmt.Errorf("save reputation: %w", err)
	}

	status := "scored"
	if res.CompositeRating == nil {
		status = "no_data"
	}
	metrics.RecordRecompute(status, time.Since(start))
	metrics.RecordScore(res.CompositeRating, res.Confidence)
	return listing, res, nil
}

// All recomputes every listing with at most workers in flight. A failing listing
// is logged and counted; only cancellation or a failure to enumerate listings
// aborts the run.
func (s *Service) All(ctx context.Context, workers int) (Summary, error) {
	if workers <= 0 {
		workers = 1
	}

	ids, err := s.listings.ListIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list listings: %w", err)
	}

	var (
		mu      sync.Mutex
		summary = Summary{Total: len(ids)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, res, err := s.Listing(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
				return err
			case err != nil:
				summary.Failed++
				s.logger.Printf("rescore: listing %s failed: %v", id, err)
			case res.CompositeRating == nil:
				summary.NoData++
			default:
				summary.Scored++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	s.logger.Printf("rescore: %d listing(s): %d scored, %d without data, %d failed",
		summary.Total, summary.Scored, summary.NoData, summary.Failed)
	return summary, nil
}

// ToReputation maps an aggregator result onto the stored reputation fields.
func ToReputation(res reputation.Result, computedAt time.Time) domain.Reputation {
	return domain.Reputation{
		CompositeRating: res.CompositeRating,
		TotalReviews:    res.TotalReviews,
		Confidence:      res.Confidence,
		TrustScore:      res.TrustScore,
		ComputedAt:      &computedAt,
	}
}
