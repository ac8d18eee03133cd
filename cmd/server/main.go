package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/venue-directory/internal/config"
	httpserver "github.com/Clark-Hu/venue-directory/internal/http"
	"github.com/Clark-Hu/venue-directory/internal/metrics"
	"github.com/Clark-Hu/venue-directory/internal/ratingsfeed"
	"github.com/Clark-Hu/venue-directory/internal/repository"
	"github.com/Clark-Hu/venue-directory/internal/reputation"
	"github.com/Clark-Hu/venue-directory/internal/rescore"
	"github.com/Clark-Hu/venue-directory/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[venue-directory] ", log.LstdFlags|log.Lshortfile)
	metrics.Init()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, storeOptions(cfg, logger))
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	var feed ratingsfeed.Client
	if cfg.FeedEnabled() {
		opts := ratingsfeed.DefaultOptions()
		opts.Timeout = time.Duration(cfg.RatingsFeedTimeoutSecs) * time.Second
		opts.MaxRetries = cfg.RatingsFeedMaxRetries
		opts.MaxFailures = uint32(cfg.RatingsFeedBreakerFailures)
		client, err := ratingsfeed.NewHTTPClient(cfg.RatingsFeedURL, cfg.RatingsFeedAPIKey, opts, logger)
		if err != nil {
			log.Fatalf("init ratings feed client: %v", err)
		}
		feed = client
	} else {
		logger.Println("RATINGSFEED_URL not set; feed sync disabled")
	}

	repo := repository.New(st)
	scorer := rescore.New(repo.Listings, repo.PlatformRatings, reputation.Default(), logger)
	server := httpserver.New(cfg, st, repo, feed, scorer, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func storeOptions(cfg config.Config, logger *log.Logger) store.Options {
	return store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}
}
