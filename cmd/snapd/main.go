package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"marketsnap/internal/config"
	"marketsnap/internal/httpx"
	"marketsnap/internal/provider"
	"marketsnap/internal/provider/alphavantage"
	"marketsnap/internal/provider/cache"
	"marketsnap/internal/provider/finnhub"
	"marketsnap/internal/provider/ratelimit"
	"marketsnap/internal/provider/yahoo"
	"marketsnap/internal/service"
	"marketsnap/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Server.LogLevel)

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	client, err := buildClient(cfg, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("provider setup")
	}

	st, persist, closeStore, err := buildStore(cfg.Snapshots)
	if err != nil {
		log.Fatal().Err(err).Msg("store setup")
	}
	defer closeStore()

	opts := []service.Option{service.WithLogger(log)}
	if persist != nil {
		opts = append(opts, service.WithPersistence(persist))
	}
	if cfg.AlphaVantage.Compact && cfg.Snapshots.Provider == "alphavantage" {
		opts = append(opts, service.WithMode(provider.ModeCompact))
	}
	svc := service.New(client, st, opts...)

	var sched *service.Scheduler
	if cfg.Snapshots.RefreshCron != "" && len(cfg.Snapshots.Symbols) > 0 {
		sched = service.NewScheduler(svc, cfg.Snapshots.Symbols, cfg.Snapshots.Benchmark, log)
		if err := sched.Start(cfg.Snapshots.RefreshCron); err != nil {
			log.Fatal().Err(err).Msg("scheduler setup")
		}
	}

	h := &handlers{svc: svc, benchmark: cfg.Snapshots.Benchmark, log: log}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(h.routes()))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("provider", client.Name()).Msg("snapd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// buildClient wires the configured provider behind its pacing and caching
// decorators. Exactly one provider serves captures; enabling several in
// config just makes them selectable here.
func buildClient(cfg config.Config, httpClient *httpx.Client) (provider.Client, error) {
	var (
		base     provider.Client
		rpm      int
		burst    int
		interval int
		ttl      int
		maxItems int
	)

	switch cfg.Snapshots.Provider {
	case "alphavantage":
		if !cfg.AlphaVantage.Enabled {
			return nil, fmt.Errorf("provider alphavantage is disabled")
		}
		if cfg.AlphaVantage.APIKey == "" {
			return nil, fmt.Errorf("ALPHA_VANTAGE_KEY not set")
		}
		avOpts := []alphavantage.Option{alphavantage.WithHTTPClient(httpClient.HTTP)}
		if cfg.AlphaVantage.BaseURL != "" {
			avOpts = append(avOpts, alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL))
		}
		base = alphavantage.New(cfg.AlphaVantage.APIKey, avOpts...)
		rpm, burst, interval = cfg.AlphaVantage.MaxRequestsPerMinute, cfg.AlphaVantage.Burst, cfg.AlphaVantage.MinRequestIntervalSec
		ttl, maxItems = cfg.AlphaVantage.CacheTTLSeconds, cfg.AlphaVantage.CacheMaxItems
	case "finnhub":
		if !cfg.Finnhub.Enabled {
			return nil, fmt.Errorf("provider finnhub is disabled")
		}
		if cfg.Finnhub.APIKey == "" {
			return nil, fmt.Errorf("FINNHUB_API_KEY not set")
		}
		base = finnhub.New(finnhub.Config{
			BaseURL:  cfg.Finnhub.BaseURL,
			APIKey:   cfg.Finnhub.APIKey,
			DaysBack: cfg.Finnhub.DaysBack,
		}, httpClient)
		rpm, burst, interval = cfg.Finnhub.MaxRequestsPerMinute, cfg.Finnhub.Burst, cfg.Finnhub.MinRequestIntervalSec
		ttl, maxItems = cfg.Finnhub.CacheTTLSeconds, cfg.Finnhub.CacheMaxItems
	case "yahoo":
		if !cfg.Yahoo.Enabled {
			return nil, fmt.Errorf("provider yahoo is disabled")
		}
		base = yahoo.New(yahoo.Config{
			BaseURL:                cfg.Yahoo.BaseURL,
			SymbolMap:              cfg.Yahoo.SymbolMap,
			SummaryCacheTTLSeconds: cfg.Yahoo.SummaryCacheTTLSec,
		}, httpClient)
		rpm, burst, interval = cfg.Yahoo.MaxRequestsPerMinute, cfg.Yahoo.Burst, cfg.Yahoo.MinRequestIntervalSec
		ttl, maxItems = cfg.Yahoo.CacheTTLSeconds, cfg.Yahoo.CacheMaxItems
	default:
		return nil, fmt.Errorf("unknown snapshot provider %q", cfg.Snapshots.Provider)
	}

	client := base
	// Prefer token bucket with burst if RPM is set, otherwise min-interval
	if rpm > 0 {
		client = ratelimit.PerMinute(client, rpm, burst)
	} else if interval > 0 {
		client = &ratelimit.MinInterval{C: client, Interval: time.Duration(interval) * time.Second}
	}
	if ttl > 0 {
		client = &cache.Client{C: client, TTL: time.Duration(ttl) * time.Second, MaxItems: maxItems}
	}
	return client, nil
}

func buildStore(cfg config.Snapshots) (*store.Store, store.Persistence, func(), error) {
	noop := func() {}
	switch {
	case cfg.SQLitePath != "":
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		st, err := store.Load(db)
		if err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		return st, db, func() { _ = db.Close() }, nil
	case cfg.FilePath != "":
		f := store.File{Path: cfg.FilePath}
		st, err := store.Load(f)
		if err != nil {
			return nil, nil, noop, err
		}
		return st, f, noop, nil
	default:
		return store.New(), nil, noop, nil
	}
}
