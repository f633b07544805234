package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"marketsnap/internal/config"
	"marketsnap/internal/httpx"
	"marketsnap/internal/provider"
	"marketsnap/internal/provider/alphavantage"
	"marketsnap/internal/provider/finnhub"
	"marketsnap/internal/provider/yahoo"
	"marketsnap/internal/service"
	"marketsnap/internal/store"
)

func main() {
	_ = godotenv.Load()

	var symbolsCSV string
	var benchmark string
	var providerName string
	var configPath string
	var timeout int

	flag.StringVar(&symbolsCSV, "symbols", os.Getenv("SYMBOLS"), "comma-separated ticker symbols")
	flag.StringVar(&benchmark, "benchmark", "", "benchmark symbol for relative snapshots (empty disables)")
	flag.StringVar(&providerName, "provider", "", "provider override: alphavantage, finnhub or yahoo")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.IntVar(&timeout, "timeout", 60, "overall timeout seconds")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if providerName != "" {
		cfg.Snapshots.Provider = strings.ToLower(providerName)
	}
	if benchmark == "" {
		benchmark = cfg.Snapshots.Benchmark
	}

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		log.Fatal().Msg("no symbols provided (use -symbols or SYMBOLS)")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	client, err := buildClient(cfg, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("provider setup")
	}

	svc := service.New(client, store.New(), service.WithLogger(log))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	out := make([]any, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		var rec any
		var err error
		if benchmark != "" && benchmark != symbol {
			rec, err = svc.CaptureRelative(ctx, symbol, strings.ToUpper(benchmark))
		} else {
			rec, err = svc.Capture(ctx, symbol)
		}
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("capture failed")
			continue
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		log.Fatal().Msg("no snapshots captured")
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

// buildClient mirrors snapd's provider selection without the pacing and
// cache decorators; a one-shot run has no call pattern worth shaping.
func buildClient(cfg config.Config, httpClient *httpx.Client) (provider.Client, error) {
	switch cfg.Snapshots.Provider {
	case "alphavantage":
		if cfg.AlphaVantage.APIKey == "" {
			return nil, fmt.Errorf("ALPHA_VANTAGE_KEY not set")
		}
		avOpts := []alphavantage.Option{alphavantage.WithHTTPClient(httpClient.HTTP)}
		if cfg.AlphaVantage.BaseURL != "" {
			avOpts = append(avOpts, alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL))
		}
		return alphavantage.New(cfg.AlphaVantage.APIKey, avOpts...), nil
	case "finnhub":
		if cfg.Finnhub.APIKey == "" {
			return nil, fmt.Errorf("FINNHUB_API_KEY not set")
		}
		return finnhub.New(finnhub.Config{
			BaseURL:  cfg.Finnhub.BaseURL,
			APIKey:   cfg.Finnhub.APIKey,
			DaysBack: cfg.Finnhub.DaysBack,
		}, httpClient), nil
	case "yahoo":
		return yahoo.New(yahoo.Config{
			BaseURL:                cfg.Yahoo.BaseURL,
			SymbolMap:              cfg.Yahoo.SymbolMap,
			SummaryCacheTTLSeconds: cfg.Yahoo.SummaryCacheTTLSec,
		}, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Snapshots.Provider)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
