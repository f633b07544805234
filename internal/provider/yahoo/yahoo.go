package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marketsnap/internal/httpx"
	"marketsnap/internal/provider"
)

// Config controls the Yahoo Finance provider.
type Config struct {
	Name    string
	BaseURL string
	// SymbolMap maps internal symbols to Yahoo tickers (e.g. SPX -> ^GSPC).
	SymbolMap map[string]string
	// SummaryCacheTTLSeconds caches the quoteSummary payload per symbol.
	// Fundamentals move slowly; there is no reason to refetch them with
	// every series pull.
	SummaryCacheTTLSeconds int
}

// Provider assembles a series from the v8 chart endpoint (history plus the
// live market price from chart meta) and the v10 quoteSummary endpoint
// (fundamentals). The chart is required; quoteSummary is best-effort.
type Provider struct {
	cfg    Config
	client *httpx.Client

	// cached fundamentals per symbol
	cache   map[string]summaryCache
	cacheMu sync.RWMutex

	// coalesce concurrent summary refreshes per symbol
	sf singleflight.Group
}

type summaryCache struct {
	until time.Time
	f     provider.Fundamentals
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.SummaryCacheTTLSeconds <= 0 {
		cfg.SummaryCacheTTLSeconds = 900
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) ticker(symbol string) string {
	if mapped, ok := p.cfg.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// chartPayload is the response of the v8 chart endpoint. Close entries are
// pointers because Yahoo pads holidays with nulls.
type chartPayload struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []chartQuote `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartQuote struct {
	Close []*float64 `json:"close"`
}

type summaryPayload struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				MarketCap  rawValue `json:"marketCap"`
				TrailingPE rawValue `json:"trailingPE"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				Beta rawValue `json:"beta"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// rawValue is Yahoo's {raw: 1.23, fmt: "1.23"} wrapper. Decoding is
// tolerant: raw may arrive as a number or a numeric string, and anything
// unparseable leaves Raw nil without erroring, so one bad field never
// voids the other fundamentals.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v *rawValue) UnmarshalJSON(b []byte) error {
	var wrapper struct {
		Raw json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(b, &wrapper); err != nil || len(wrapper.Raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(wrapper.Raw, &f); err == nil {
		v.Raw = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(wrapper.Raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			v.Raw = &f
		}
	}
	return nil
}

func (p *Provider) FetchSeries(ctx context.Context, symbol string, mode provider.Mode) (provider.Series, error) {
	rng := "2y"
	if mode == provider.ModeCompact {
		rng = "6mo"
	}

	chart, err := p.fetchChart(ctx, symbol, rng)
	if err != nil {
		return provider.Series{}, err
	}
	if chart.Chart.Error != nil {
		return provider.Series{}, provider.NoData(p.cfg.Name, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return provider.Series{}, provider.NoData(p.cfg.Name, fmt.Sprintf("no chart data for %s", symbol))
	}

	result := chart.Chart.Result[0]
	series := provider.Series{Points: normalizeChart(result.Timestamp, result.Indicators.Quote)}
	if lp := result.Meta.RegularMarketPrice; lp != nil && *lp > 0 && provider.Finite(*lp) {
		v := *lp
		series.LivePrice = &v
	}

	// fundamentals are independent of the price series and never abort it
	series.Fundamentals = p.fundamentals(ctx, symbol)
	return series, nil
}

func (p *Provider) fetchChart(ctx context.Context, symbol, rng string) (chartPayload, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		p.cfg.BaseURL, url.PathEscape(p.ticker(symbol)), rng)
	var chart chartPayload
	if err := p.getJSON(ctx, u, &chart); err != nil {
		return chartPayload{}, err
	}
	return chart, nil
}

// fundamentals returns the cached quoteSummary metrics, refreshing through
// singleflight so concurrent builds for the same symbol share one upstream
// call. Any failure just yields empty fundamentals.
func (p *Provider) fundamentals(ctx context.Context, symbol string) provider.Fundamentals {
	now := time.Now()

	p.cacheMu.RLock()
	sc, ok := p.cache[symbol]
	p.cacheMu.RUnlock()
	if ok && now.Before(sc.until) {
		return sc.f
	}

	v, err, _ := p.sf.Do(symbol, func() (any, error) {
		sumCtx, cancel := context.WithTimeout(ctx, 7*time.Second)
		defer cancel()
		return p.fetchSummary(sumCtx, symbol)
	})
	if err != nil {
		return provider.Fundamentals{}
	}
	f := v.(provider.Fundamentals)

	p.cacheMu.Lock()
	if p.cache == nil {
		p.cache = make(map[string]summaryCache)
	}
	p.cache[symbol] = summaryCache{
		until: now.Add(time.Duration(p.cfg.SummaryCacheTTLSeconds) * time.Second),
		f:     f,
	}
	p.cacheMu.Unlock()
	return f
}

func (p *Provider) fetchSummary(ctx context.Context, symbol string) (provider.Fundamentals, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=summaryDetail,defaultKeyStatistics",
		p.cfg.BaseURL, url.PathEscape(p.ticker(symbol)))
	var sum summaryPayload
	if err := p.getJSON(ctx, u, &sum); err != nil {
		return provider.Fundamentals{}, err
	}
	if len(sum.QuoteSummary.Result) == 0 {
		return provider.Fundamentals{}, nil
	}
	r := sum.QuoteSummary.Result[0]

	out := provider.Fundamentals{}
	if v := r.SummaryDetail.MarketCap.Raw; v != nil && provider.Finite(*v) && *v > 0 {
		mc := *v
		out.MarketCap = &mc
	}
	if v := r.SummaryDetail.TrailingPE.Raw; v != nil && provider.Finite(*v) {
		pe := *v
		out.TrailingPE = &pe
	}
	if v := r.DefaultKeyStatistics.Beta.Raw; v != nil && provider.Finite(*v) {
		b := *v
		out.Beta = &b
	}
	return out, nil
}

func (p *Provider) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return provider.RateLimited(p.cfg.Name, strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("GET %s -> %d: %s", u, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// normalizeChart converts ascending timestamps plus padded closes into
// points newest first, skipping null and non-finite bars.
func normalizeChart(timestamps []int64, quotes []chartQuote) []provider.PricePoint {
	if len(quotes) == 0 {
		return nil
	}
	closes := quotes[0].Close
	points := make([]provider.PricePoint, 0, len(timestamps))
	for i := len(timestamps) - 1; i >= 0; i-- {
		if i >= len(closes) || closes[i] == nil || !provider.Finite(*closes[i]) {
			continue
		}
		points = append(points, provider.PricePoint{
			Date:  time.Unix(timestamps[i], 0).UTC().Format("2006-01-02"),
			Close: *closes[i],
		})
	}
	return points
}
