package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	LogLevel          string `json:"log_level"`
}

type AlphaVantage struct {
	Enabled               bool   `json:"enabled"`
	APIKey                string `json:"api_key"`
	BaseURL               string `json:"base_url"`
	Compact               bool   `json:"compact"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	Burst                 int    `json:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec"`
	CacheMaxItems         int    `json:"cache_max_items"`
}

type Finnhub struct {
	Enabled               bool   `json:"enabled"`
	APIKey                string `json:"api_key"`
	BaseURL               string `json:"base_url"`
	DaysBack              int    `json:"days_back"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	Burst                 int    `json:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec"`
	CacheMaxItems         int    `json:"cache_max_items"`
}

type Yahoo struct {
	Enabled               bool              `json:"enabled"`
	BaseURL               string            `json:"base_url"`
	SymbolMap             map[string]string `json:"symbol_map"`
	SummaryCacheTTLSec    int               `json:"summary_cache_ttl_sec"`
	MaxRequestsPerMinute  int               `json:"max_requests_per_minute"`
	Burst                 int               `json:"burst"`
	MinRequestIntervalSec int               `json:"min_request_interval_sec"`
	CacheTTLSeconds       int               `json:"cache_ttl_sec"`
	CacheMaxItems         int               `json:"cache_max_items"`
}

type Snapshots struct {
	// Provider selects which client serves captures: alphavantage,
	// finnhub or yahoo. It must be one of the enabled providers.
	Provider  string   `json:"provider"`
	Benchmark string   `json:"benchmark"`
	Symbols   []string `json:"symbols"`
	// RefreshCron schedules automatic re-capture of Symbols. Empty
	// disables the scheduler.
	RefreshCron string `json:"refresh_cron"`
	// SQLitePath enables durable storage in SQLite; FilePath falls back
	// to a JSON file. Both empty keeps history in memory only.
	SQLitePath string `json:"sqlite_path"`
	FilePath   string `json:"file_path"`
}

type Config struct {
	Server       Server       `json:"server"`
	AlphaVantage AlphaVantage `json:"alphavantage"`
	Finnhub      Finnhub      `json:"finnhub"`
	Yahoo        Yahoo        `json:"yahoo"`
	Snapshots    Snapshots    `json:"snapshots"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "3001", RequestTimeoutSec: 15, LogLevel: "info"},
		AlphaVantage: AlphaVantage{
			Enabled:              true,
			MaxRequestsPerMinute: 5,
			Burst:                1,
			CacheTTLSeconds:      300,
			CacheMaxItems:        1000,
		},
		Finnhub: Finnhub{
			Enabled:              false,
			DaysBack:             400,
			MaxRequestsPerMinute: 30,
			Burst:                5,
			CacheTTLSeconds:      60,
			CacheMaxItems:        1000,
		},
		Yahoo: Yahoo{
			Enabled:            false,
			SummaryCacheTTLSec: 900,
			Burst:              2,
			CacheTTLSeconds:    60,
			CacheMaxItems:      1000,
		},
		Snapshots: Snapshots{
			Provider:  "alphavantage",
			Benchmark: "SPY",
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields
// for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}

	if v := os.Getenv("ALPHA_VANTAGE_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_MAX_RPM"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.AlphaVantage.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Finnhub.BaseURL = v
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = v
	}

	if v := os.Getenv("SNAPSHOT_PROVIDER"); v != "" {
		cfg.Snapshots.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("BENCHMARK_SYMBOL"); v != "" {
		cfg.Snapshots.Benchmark = v
	}
	if v := os.Getenv("TRACKED_SYMBOLS"); v != "" {
		cfg.Snapshots.Symbols = splitCSV(v)
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		cfg.Snapshots.RefreshCron = v
	}
	if v := os.Getenv("SNAPSHOT_SQLITE_PATH"); v != "" {
		cfg.Snapshots.SQLitePath = v
	}
	if v := os.Getenv("SNAPSHOT_FILE_PATH"); v != "" {
		cfg.Snapshots.FilePath = v
	}
}

func atoi(s string) int {
	var x int
	_, _ = fmt.Sscanf(s, "%d", &x)
	return x
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
