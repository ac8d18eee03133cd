package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Clark-Hu/venue-directory/internal/reputation"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreYAML(t *testing.T) {
	path := writeFile(t, "signals.yaml", `
directory:
  rating: 4.8
  reviewCount: 2
google:
  rating: 4.5
  reviewCount: 200
yelp:
  rating: 4.0
  reviewCount: 100
`)

	out, err := execute(t, "", "score", "--file", path, "--json")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var res reputation.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res.CompositeRating == nil || *res.CompositeRating != 4.47 {
		t.Fatalf("composite = %v, want 4.47", res.CompositeRating)
	}
	if res.TrustScore == nil || *res.TrustScore != 89 || res.Confidence != 100 || res.TotalReviews != 302 {
		t.Fatalf("result = %+v", res)
	}
}

func TestScoreJSONFromStdinTable(t *testing.T) {
	out, err := execute(t, `{"booking": {"rating": 8.6, "reviewCount": 20}}`, "score", "-f", "-")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for _, want := range []string{"composite", "4.30", "confidence", "40%", "trust", "34%", "booking"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScoreNoData(t *testing.T) {
	path := writeFile(t, "empty.yaml", "google:\n  rating: null\n  reviewCount: 40\n")
	out, err := execute(t, "", "score", "--file", path)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !strings.Contains(out, "n/a") {
		t.Fatalf("expected n/a composite:\n%s", out)
	}
}

func TestScoreRejectsContractViolation(t *testing.T) {
	path := writeFile(t, "bad.yaml", "google:\n  rating: 9\n  reviewCount: 1\n")
	if _, err := execute(t, "", "score", "--file", path); err == nil || !strings.Contains(err.Error(), "google") {
		t.Fatalf("error = %v, want google contract violation", err)
	}
}

func TestScoreSaturationFlag(t *testing.T) {
	path := writeFile(t, "s.yaml", "directory:\n  rating: 4\n  reviewCount: 5\n")
	out, err := execute(t, "", "score", "--file", path, "--json", "--saturation", "10")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var res reputation.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Confidence != 50 {
		t.Fatalf("confidence = %d, want 50", res.Confidence)
	}
}

func TestScoreRequiresFile(t *testing.T) {
	if _, err := execute(t, "", "score"); err == nil {
		t.Fatalf("expected error without --file")
	}
}

func TestSources(t *testing.T) {
	out, err := execute(t, "", "sources")
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	for _, want := range []string{"directory", "primary (weight 0.40)", "booking", "0-10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
