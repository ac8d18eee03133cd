package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"
)

type platformEntry struct {
	Source      string   `json:"source"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int64   `json:"reviewCount"`
}

type feedEntry struct {
	Slug      string          `json:"slug"`
	Platforms []platformEntry `json:"platforms"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-ratingsfeed.json", "path to mock data file keyed by slug")
		apiKey  = flag.String("api-key", "", "require this X-API-Key value when set")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var payload map[string][]platformEntry
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ratings", func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		slug := r.URL.Query().Get("slug")
		if *verbose {
			log.Printf("%s %s slug=%q", r.Method, r.URL.Path, slug)
		}
		platforms, ok := payload[slug]
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		entry := feedEntry{Slug: slug, Platforms: platforms, FetchedAt: time.Now().UTC()}
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	log.Printf("mock ratings feed listening on %s (%d listings)", addr, len(payload))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
