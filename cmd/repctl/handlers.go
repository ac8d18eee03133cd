package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Clark-Hu/venue-directory/internal/config"
	"github.com/Clark-Hu/venue-directory/internal/repository"
	"github.com/Clark-Hu/venue-directory/internal/reputation"
	"github.com/Clark-Hu/venue-directory/internal/rescore"
	"github.com/Clark-Hu/venue-directory/internal/store"
)

func readSignals(stdin io.Reader, path string) (reputation.Signals, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}

	signals := reputation.Signals{}
	if err := yaml.Unmarshal(data, &signals); err != nil {
		return nil, fmt.Errorf("parse signals: %w", err)
	}
	return signals, nil
}

func runScore(stdin io.Reader, out io.Writer, path string, jsonOutput bool, saturation int64) error {
	signals, err := readSignals(stdin, path)
	if err != nil {
		return err
	}

	var opts []reputation.Option
	if saturation > 0 {
		opts = append(opts, reputation.WithConfidenceSaturation(saturation))
	}
	agg, err := reputation.NewAggregator(reputation.DefaultSources(), opts...)
	if err != nil {
		return err
	}

	res, err := agg.Aggregate(signals)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "composite\t%s\n", formatFloat(res.CompositeRating))
	fmt.Fprintf(w, "reviews\t%d\n", res.TotalReviews)
	fmt.Fprintf(w, "confidence\t%d%%\n", res.Confidence)
	fmt.Fprintf(w, "trust\t%s\n", formatInt(res.TrustScore))
	if len(res.Breakdown) > 0 {
		fmt.Fprintln(w, "\nSOURCE\tNORMALIZED\tWEIGHT")
		for _, c := range res.Breakdown {
			fmt.Fprintf(w, "%s\t%.3f\t%.3f\n", c.Source, c.Normalized, c.Weight)
		}
	}
	return w.Flush()
}

func runSources(out io.Writer, jsonOutput bool) error {
	sources := reputation.Default().Sources()

	if jsonOutput {
		type row struct {
			ID            string  `json:"id"`
			NativeMax     float64 `json:"nativeMax"`
			Primary       bool    `json:"primary"`
			PrimaryWeight float64 `json:"primaryWeight,omitempty"`
		}
		rows := make([]row, 0, len(sources))
		for _, s := range sources {
			rows = append(rows, row{ID: string(s.ID), NativeMax: s.NativeMax, Primary: s.Primary, PrimaryWeight: s.PrimaryWeight})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tSCALE\tROLE")
	for _, s := range sources {
		role := "external"
		if s.Primary {
			role = fmt.Sprintf("primary (weight %.2f)", s.PrimaryWeight)
		}
		fmt.Fprintf(w, "%s\t0-%g\t%s\n", s.ID, s.NativeMax, role)
	}
	return w.Flush()
}

func openStore(ctx context.Context) (*store.Store, config.Config, error) {
	cfg, err := config.LoadDB()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger := log.New(os.Stderr, "[repctl] ", log.LstdFlags)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open store: %w", err)
	}
	return st, cfg, nil
}

func runRescore(ctx context.Context, out io.Writer, workers int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if workers <= 0 {
		workers = cfg.RescoreWorkers
	}

	repo := repository.New(st)
	svc := rescore.New(repo.Listings, repo.PlatformRatings, reputation.Default(), log.New(os.Stderr, "[repctl] ", log.LstdFlags))
	summary, err := svc.All(ctx, workers)
	if err != nil {
		return fmt.Errorf("rescore: %w", err)
	}

	fmt.Fprintf(out, "%d listing(s): %d scored, %d without data, %d failed\n",
		summary.Total, summary.Scored, summary.NoData, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d listing(s) failed to rescore", summary.Failed)
	}
	return nil
}

func runMigrate(ctx context.Context, out io.Writer, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	applied, err := st.Migrate(ctx, dir)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, name := range applied {
		fmt.Fprintf(out, "applied %s\n", name)
	}
	return nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatInt(v *int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d%%", *v)
}
