package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/venue-directory/internal/domain"
)

// ListingsRepository provides persistence helpers for listings.
type ListingsRepository struct {
	pool *pgxpool.Pool
}

const listingColumns = `
    id,
    slug,
    name,
    category,
    city,
    website,
    composite_rating,
    total_reviews,
    confidence,
    trust_score,
    reputation_updated_at,
    created_at,
    updated_at
`

// ListingCreateParams bundles the fields required to create a listing.
type ListingCreateParams struct {
	Slug     string
	Name     string
	Category string
	City     *string
	Website  *string
}

// ListingListFilters encapsulates search and pagination options.
type ListingListFilters struct {
	Query    *string
	Category *string
	City     *string
	MinTrust *int
	Limit    int
	Cursor   *ListingCursor
}

// ListingCursor allows stable pagination by created_at/id.
type ListingCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// ListingListResult returns the paginated payload.
type ListingListResult struct {
	Items      []domain.Listing
	NextCursor *string
}

// Create inserts a new listing row and returns the stored entity.
func (r *ListingsRepository) Create(ctx context.Context, params ListingCreateParams) (domain.Listing, error) {
	query := fmt.Sprintf(`
        INSERT INTO listings (id, slug, name, category, city, website)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, listingColumns)

	row := r.pool.QueryRow(ctx, query, uuid.NewString(), params.Slug, params.Name, params.Category, params.City, params.Website)
	listing, err := scanListing(row)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return domain.Listing{}, ErrConflict
		}
		return domain.Listing{}, err
	}
	return listing, nil
}

// GetByID fetches a listing by its identifier.
func (r *ListingsRepository) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Listing{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns)
	return r.getOne(ctx, query, id)
}

// GetBySlug fetches a listing by its unique slug.
func (r *ListingsRepository) GetBySlug(ctx context.Context, slug string) (domain.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE slug = $1`, listingColumns)
	return r.getOne(ctx, query, slug)
}

func (r *ListingsRepository) getOne(ctx context.Context, query string, arg interface{}) (domain.Listing, error) {
	listing, err := scanListing(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, ErrNotFound
		}
		return domain.Listing{}, err
	}
	return listing, nil
}

// SaveReputation stores the outcome of a scoring run on the listing row.
func (r *ListingsRepository) SaveReputation(ctx context.Context, id string, rep domain.Reputation) (domain.Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Listing{}, ErrNotFound
	}
	computedAt := time.Now().UTC()
	if rep.ComputedAt != nil {
		computedAt = rep.ComputedAt.UTC()
	}

	query := fmt.Sprintf(`
        UPDATE listings
        SET composite_rating = $2,
            total_reviews = $3,
            confidence = $4,
            trust_score = $5,
            reputation_updated_at = $6,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, listingColumns)

	row := r.pool.QueryRow(ctx, query, id, rep.CompositeRating, rep.TotalReviews, rep.Confidence, rep.TrustScore, computedAt)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, ErrNotFound
		}
		return domain.Listing{}, err
	}
	return listing, nil
}

// ListIDs returns every listing id, oldest first.
func (r *ListingsRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text FROM listings ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// List returns listings that match the provided filters.
func (r *ListingsRepository) List(ctx context.Context, filters ListingListFilters) (ListingListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		q := "%" + strings.TrimSpace(*filters.Query) + "%"
		p1 := arg(q)
		p2 := arg(q)
		where = append(where, fmt.Sprintf("(name ILIKE %s OR city ILIKE %s)", p1, p2))
	}
	if filters.Category != nil && strings.TrimSpace(*filters.Category) != "" {
		where = append(where, fmt.Sprintf("category ILIKE %s", arg(strings.TrimSpace(*filters.Category))))
	}
	if filters.City != nil && strings.TrimSpace(*filters.City) != "" {
		where = append(where, fmt.Sprintf("city ILIKE %s", arg(strings.TrimSpace(*filters.City))))
	}
	if filters.MinTrust != nil {
		where = append(where, fmt.Sprintf("trust_score >= %s", arg(*filters.MinTrust)))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s::uuid)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(listingColumns)
	queryBuilder.WriteString(" FROM listings")
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return ListingListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return ListingListResult{}, err
		}
		items = append(items, listing)
	}
	if err := rows.Err(); err != nil {
		return ListingListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCursor(ListingCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return ListingListResult{}, err
		}
		nextCursor = &token
	}

	return ListingListResult{Items: items, NextCursor: nextCursor}, nil
}

func scanListing(row pgx.Row) (domain.Listing, error) {
	var listing domain.Listing
	err := row.Scan(
		&listing.ID,
		&listing.Slug,
		&listing.Name,
		&listing.Category,
		&listing.City,
		&listing.Website,
		&listing.Reputation.CompositeRating,
		&listing.Reputation.TotalReviews,
		&listing.Reputation.Confidence,
		&listing.Reputation.TrustScore,
		&listing.Reputation.ComputedAt,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}
	return listing, nil
}

func encodeCursor(c ListingCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a ListingCursor.
func DecodeCursor(token string) (*ListingCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor ListingCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if _, err := uuid.Parse(cursor.ID); err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &cursor, nil
}
