package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/venue-directory/internal/domain"
	"github.com/Clark-Hu/venue-directory/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const maxSlugLength = 120

type listingCreateRequest struct {
	Slug     string  `json:"slug"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	City     *string `json:"city"`
	Website  *string `json:"website"`
}

type listingListResponse struct {
	Items      []listingResponse `json:"items"`
	NextCursor *string           `json:"nextCursor,omitempty"`
}

type listingResponse struct {
	ID         string             `json:"id"`
	Slug       string             `json:"slug"`
	Name       string             `json:"name"`
	Category   string             `json:"category"`
	City       *string            `json:"city,omitempty"`
	Website    *string            `json:"website,omitempty"`
	Reputation reputationResponse `json:"reputation"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type reputationResponse struct {
	CompositeRating *float64   `json:"compositeRating"`
	TotalReviews    int64      `json:"totalReviews"`
	Confidence      int        `json:"confidence"`
	TrustScore      *int       `json:"trustScore"`
	ComputedAt      *time.Time `json:"computedAt,omitempty"`
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	filters, err := buildListingFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.repo.Listings.List(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list listings error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list listings")
		return
	}

	items := make([]listingResponse, 0, len(result.Items))
	for _, listing := range result.Items {
		items = append(items, toListingResponse(listing))
	}
	s.respondJSON(w, http.StatusOK, listingListResponse{
		Items:      items,
		NextCursor: result.NextCursor,
	})
}

func buildListingFilters(query url.Values) (repository.ListingListFilters, error) {
	var filters repository.ListingListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("category")); val != "" {
		filters.Category = &val
	}
	if val := strings.TrimSpace(query.Get("city")); val != "" {
		filters.City = &val
	}
	if val := strings.TrimSpace(query.Get("minTrust")); val != "" {
		minTrust, err := strconv.Atoi(val)
		if err != nil || minTrust < 0 || minTrust > 100 {
			return filters, fmt.Errorf("invalid minTrust value")
		}
		filters.MinTrust = &minTrust
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	if !s.requireBearer(w, r) {
		return
	}

	var req listingCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	params, err := validateListingCreate(req)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	listing, err := s.repo.Listings.Create(r.Context(), params)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.respondError(w, http.StatusConflict, "CONFLICT", "A listing with this slug already exists")
			return
		}
		s.logger.Printf("create listing error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create listing")
		return
	}

	if s.feed != nil {
		if _, err := s.syncFromFeed(r.Context(), listing); err != nil {
			s.logger.Printf("ratings feed sync skipped for %s: %v", listing.Slug, err)
		}
	}
	if updated, _, err := s.scorer.Listing(r.Context(), listing.ID); err != nil {
		s.logger.Printf("initial reputation for %s failed: %v", listing.Slug, err)
	} else {
		listing = updated
	}

	w.Header().Set("Location", "/listings/"+url.PathEscape(listing.Slug))
	s.respondJSON(w, http.StatusCreated, toListingResponse(listing))
}

func validateListingCreate(req listingCreateRequest) (repository.ListingCreateParams, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	name := strings.TrimSpace(req.Name)
	category := strings.ToLower(strings.TrimSpace(req.Category))

	if name == "" || category == "" {
		return repository.ListingCreateParams{}, fmt.Errorf("name and category are required")
	}
	if len(slug) > maxSlugLength || !slugPattern.MatchString(slug) {
		return repository.ListingCreateParams{}, fmt.Errorf("slug must be lowercase words separated by single hyphens")
	}
	website := normalizeStringPtr(req.Website)
	if website != nil {
		u, err := url.Parse(*website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return repository.ListingCreateParams{}, fmt.Errorf("website must be an absolute http(s) url")
		}
	}
	return repository.ListingCreateParams{
		Slug:     slug,
		Name:     name,
		Category: category,
		City:     normalizeStringPtr(req.City),
		Website:  website,
	}, nil
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listing, ok := s.listingFromPath(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, toListingResponse(listing))
}

// listingFromPath resolves the {slug} parameter. It writes the error response
// and returns false when the listing cannot be loaded.
func (s *Server) listingFromPath(w http.ResponseWriter, r *http.Request) (domain.Listing, bool) {
	slug, err := decodeSlugParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return domain.Listing{}, false
	}
	listing, err := s.repo.Listings.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return domain.Listing{}, false
		}
		s.logger.Printf("fetch listing %q failed: %v", slug, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch listing")
		return domain.Listing{}, false
	}
	return listing, true
}

func decodeSlugParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "slug")
	if raw == "" {
		return "", fmt.Errorf("missing slug parameter")
	}
	slug, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid slug parameter")
	}
	return strings.ToLower(slug), nil
}

func toListingResponse(listing domain.Listing) listingResponse {
	return listingResponse{
		ID:         listing.ID,
		Slug:       listing.Slug,
		Name:       listing.Name,
		Category:   listing.Category,
		City:       listing.City,
		Website:    listing.Website,
		Reputation: toReputationResponse(listing.Reputation),
		CreatedAt:  listing.CreatedAt,
		UpdatedAt:  listing.UpdatedAt,
	}
}

func toReputationResponse(rep domain.Reputation) reputationResponse {
	return reputationResponse{
		CompositeRating: rep.CompositeRating,
		TotalReviews:    rep.TotalReviews,
		Confidence:      rep.Confidence,
		TrustScore:      rep.TrustScore,
		ComputedAt:      rep.ComputedAt,
	}
}
