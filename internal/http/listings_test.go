package httpserver

import (
	"net/url"
	"testing"
	"time"

	"github.com/Clark-Hu/venue-directory/internal/config"
	"github.com/Clark-Hu/venue-directory/internal/domain"
	"github.com/Clark-Hu/venue-directory/internal/reputation"
)

func TestBuildListingFilters(t *testing.T) {
	values, _ := url.ParseQuery("q= roma &category=restaurant&city= Lisbon &minTrust=70&limit=150")

	filters, err := buildListingFilters(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filters.Query == nil || *filters.Query != "roma" {
		t.Fatalf("query not trimmed: %+v", filters.Query)
	}
	if filters.Category == nil || *filters.Category != "restaurant" {
		t.Fatalf("category parse failed: %+v", filters.Category)
	}
	if filters.City == nil || *filters.City != "Lisbon" {
		t.Fatalf("city parse failed")
	}
	if filters.MinTrust == nil || *filters.MinTrust != 70 {
		t.Fatalf("minTrust parse failed")
	}
	if filters.Limit != 150 {
		t.Fatalf("limit not parsed: %d", filters.Limit)
	}
}

func TestBuildListingFilters_Invalid(t *testing.T) {
	for _, raw := range []string{"minTrust=abc", "minTrust=101", "minTrust=-1", "limit=x", "cursor=not-base64!"} {
		values, err := url.ParseQuery(raw)
		if err != nil {
			continue
		}
		if _, err := buildListingFilters(values); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestValidateListingCreate(t *testing.T) {
	website := "https://cafe.example"
	params, err := validateListingCreate(listingCreateRequest{
		Slug:     " Cafe-Roma ",
		Name:     " Cafe Roma ",
		Category: "Restaurant",
		Website:  &website,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Slug != "cafe-roma" || params.Name != "Cafe Roma" || params.Category != "restaurant" {
		t.Fatalf("params not normalized: %+v", params)
	}

	bad := "ftp://cafe.example"
	cases := []listingCreateRequest{
		{Slug: "cafe", Name: "", Category: "x"},
		{Slug: "cafe", Name: "x", Category: " "},
		{Slug: "cafe roma", Name: "x", Category: "y"},
		{Slug: "cafe--roma", Name: "x", Category: "y"},
		{Slug: "-cafe", Name: "x", Category: "y"},
		{Slug: "cafe", Name: "x", Category: "y", Website: &bad},
	}
	for _, req := range cases {
		if _, err := validateListingCreate(req); err == nil {
			t.Fatalf("expected validation error for %+v", req)
		}
	}
}

func TestVerifyBearer(t *testing.T) {
	srv := &Server{cfg: config.Config{AuthToken: "secret"}}
	cases := []struct {
		header  string
		allowed bool
	}{
		{"Bearer secret", true},
		{"Bearer secret ", true},
		{"Bearer other", false},
		{"secret", false},
		{"", false},
	}
	for _, c := range cases {
		if srv.verifyBearer(c.header) != c.allowed {
			t.Fatalf("verifyBearer(%q) expected %v", c.header, c.allowed)
		}
	}

	open := &Server{cfg: config.Config{}}
	if open.verifyBearer("Bearer ") {
		t.Fatalf("empty token must never authorize")
	}
}

func TestIsStale(t *testing.T) {
	composite := 4.47
	trust := 89
	now := time.Now()
	stored := domain.Reputation{CompositeRating: &composite, TotalReviews: 302, Confidence: 100, TrustScore: &trust, ComputedAt: &now}

	same := reputation.Result{CompositeRating: &composite, TotalReviews: 302, Confidence: 100, TrustScore: &trust}
	if isStale(stored, same) {
		t.Fatalf("identical values reported stale")
	}

	other := 4.5
	if !isStale(stored, reputation.Result{CompositeRating: &other, TotalReviews: 302, Confidence: 100, TrustScore: &trust}) {
		t.Fatalf("changed composite not reported stale")
	}
	if !isStale(stored, reputation.Result{}) {
		t.Fatalf("lost data not reported stale")
	}
	if !isStale(domain.Reputation{}, reputation.Result{}) {
		t.Fatalf("never computed reputation must be stale")
	}
}
