// Command songcanon resolves a free-text song query to its canonical
// recording and prints the result as JSON.
//
// Usage:
//
//	songcanon [--debug] <query>
//
// Configuration is read from the file named by SC_CONFIG_PATH (optional)
// and SC_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sydlexius/songcanon/internal/cache"
	"github.com/sydlexius/songcanon/internal/catalog"
	"github.com/sydlexius/songcanon/internal/config"
	"github.com/sydlexius/songcanon/internal/database"
	"github.com/sydlexius/songcanon/internal/event"
	"github.com/sydlexius/songcanon/internal/logging"
	"github.com/sydlexius/songcanon/internal/resolver"
	"github.com/sydlexius/songcanon/internal/upstream"
	"github.com/sydlexius/songcanon/internal/validate"
	"github.com/sydlexius/songcanon/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "songcanon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		debug       = flag.Bool("debug", false, "include the resolution trace in the output")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return nil
	}

	rawQuery := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if rawQuery == "" {
		return fmt.Errorf("usage: songcanon [--debug] <query>")
	}

	cfg, err := config.Load(os.Getenv("SC_CONFIG_PATH"))
	if err != nil {
		return err
	}

	logManager, logger := logging.NewManager(cfg.Logging)
	defer logManager.Close() //nolint:errcheck

	store, closeStore, err := openStore(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := event.NewBus(logger, 0)
	go bus.Start()
	defer bus.Stop()

	limiter := upstream.NewRateLimiterMap()
	cat := catalog.NewWithBaseURL(limiter, logger, cfg.Catalog.Contact, cfg.Catalog.BaseURL)
	encyclopedia := validate.NewWikipediaWithBaseURL(limiter, logger, cfg.Validation.WikipediaBaseURL)
	reranker := validate.NewReranker(cfg.Validation, limiter, logger)

	seeds, err := resolver.LoadSeeds()
	if err != nil {
		return err
	}

	discoverer := resolver.NewDiscoverer(cat, store, seeds, cfg.Discovery, cfg.Cache.TTL, logger, bus)
	svc := resolver.NewService(discoverer, seeds, cfg.Thresholds, encyclopedia, reranker, logger, bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := svc.Resolve(ctx, rawQuery, *debug)
	if err != nil {
		return err
	}
	if resp == nil {
		logger.Info("no results", slog.String("query", rawQuery))
		fmt.Println("null")
		return nil
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// openStore selects the cache backend: SQLite when a path is configured,
// in-memory otherwise.
func openStore(cfg config.CacheConfig, logger *slog.Logger) (cache.Store, func(), error) {
	if cfg.Path == "" {
		return cache.NewMemoryStore(), func() {}, nil
	}

	db, err := database.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store := cache.NewSQLiteStore(db)
	if purged, err := store.Purge(context.Background()); err == nil && purged > 0 {
		logger.Debug("purged expired cache rows", slog.Int64("rows", purged))
	}
	return store, func() { _ = db.Close() }, nil
}
