package httpserver

import (
	"net/url"
	"testing"
)

func FuzzBuildListingFilters(f *testing.F) {
	seeds := []string{
		"q=roma&category=restaurant&minTrust=80",
		"minTrust=abc",
		"limit=200",
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		values, err := url.ParseQuery(raw)
		if err != nil {
			return
		}
		filters, err := buildListingFilters(values)
		if err != nil {
			return
		}
		if filters.MinTrust != nil && (*filters.MinTrust < 0 || *filters.MinTrust > 100) {
			t.Fatalf("minTrust out of range accepted: %d", *filters.MinTrust)
		}
	})
}

func FuzzValidateListingCreate(f *testing.F) {
	f.Add("cafe-roma", "Cafe", "food")
	f.Add("Bad Slug", "", "")

	f.Fuzz(func(t *testing.T, slug, name, category string) {
		params, err := validateListingCreate(listingCreateRequest{Slug: slug, Name: name, Category: category})
		if err != nil {
			return
		}
		if !slugPattern.MatchString(params.Slug) || params.Name == "" || params.Category == "" {
			t.Fatalf("invalid params accepted: %+v", params)
		}
	})
}
