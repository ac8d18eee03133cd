package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/venue-directory/internal/domain"
)

// PlatformRatingsRepository stores the per-platform rating pairs of each listing.
type PlatformRatingsRepository struct {
	pool *pgxpool.Pool
}

// PlatformRatingUpsertParams captures the payload required to upsert a platform rating.
type PlatformRatingUpsertParams struct {
	ListingID   string
	Source      string
	Rating      *float64
	ReviewCount *int64
}

// Upsert inserts or replaces a platform rating and indicates whether it was newly created.
func (r *PlatformRatingsRepository) Upsert(ctx context.Context, params PlatformRatingUpsertParams) (domain.PlatformRating, bool, error) {
	if _, err := uuid.Parse(params.ListingID); err != nil {
		return domain.PlatformRating{}, false, ErrNotFound
	}

	const query = `
        INSERT INTO platform_ratings (listing_id, source, rating, review_count)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (listing_id, source)
        DO UPDATE SET rating = EXCLUDED.rating, review_count = EXCLUDED.review_count, updated_at = now()
        RETURNING listing_id, source, rating, review_count, updated_at, (xmax = 0) AS inserted
    `

	var rating domain.PlatformRating
	var inserted bool
	err := r.pool.QueryRow(ctx, query, params.ListingID, params.Source, params.Rating, params.ReviewCount).Scan(
		&rating.ListingID,
		&rating.Source,
		&rating.Rating,
		&rating.ReviewCount,
		&rating.UpdatedAt,
		&inserted,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.PlatformRating{}, false, ErrNotFound
		}
		return domain.PlatformRating{}, false, err
	}
	return rating, inserted, nil
}

// ListByListing returns every stored platform rating of a listing ordered by source.
func (r *PlatformRatingsRepository) ListByListing(ctx context.Context, listingID string) ([]domain.PlatformRating, error) {
	if _, err := uuid.Parse(listingID); err != nil {
		return nil, ErrNotFound
	}

	const query = `
        SELECT listing_id, source, rating, review_count, updated_at
        FROM platform_ratings
        WHERE listing_id = $1
        ORDER BY source
    `
	rows, err := r.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("list platform ratings: %w", err)
	}
	ratings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PlatformRating, error) {
		var pr domain.PlatformRating
		err := row.Scan(&pr.ListingID, &pr.Source, &pr.Rating, &pr.ReviewCount, &pr.UpdatedAt)
		return pr, err
	})
	if err != nil {
		return nil, fmt.Errorf("list platform ratings: %w", err)
	}
	return ratings, nil
}

// Delete removes one platform rating.
func (r *PlatformRatingsRepository) Delete(ctx context.Context, listingID, source string) error {
	if _, err := uuid.Parse(listingID); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM platform_ratings WHERE listing_id = $1 AND source = $2`, listingID, source)
	if err != nil {
		return fmt.Errorf("delete platform rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
