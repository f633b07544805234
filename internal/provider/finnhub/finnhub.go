package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"marketsnap/internal/httpx"
	"marketsnap/internal/provider"
)

// Config controls the Finnhub provider.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	// DaysBack bounds the candle lookback. Defaults to 400 calendar days,
	// enough to cover the 252-trading-day window.
	DaysBack int
}

// Provider assembles a series from three Finnhub endpoints: /quote for the
// live price, /stock/candle for the daily history and /stock/metric for
// fundamentals. The quote is required; candles and metrics are best-effort
// because free keys are routinely forbidden from one or the other, and a
// price-only snapshot is still useful.
type Provider struct {
	cfg    Config
	client *httpx.Client
	now    func() time.Time
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "finnhub"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 400
	}
	return &Provider{cfg: cfg, client: hc, now: time.Now}
}

func (p *Provider) Name() string { return p.cfg.Name }

type quotePayload struct {
	Current   float64 `json:"c"`
	Timestamp int64   `json:"t"`
}

type candlePayload struct {
	Status     string    `json:"s"`
	Closes     []float64 `json:"c"`
	Timestamps []int64   `json:"t"`
}

type metricPayload struct {
	Metric struct {
		MarketCap *float64 `json:"marketCapitalization"`
		PETTM     *float64 `json:"peTTM"`
		Beta      *float64 `json:"beta"`
	} `json:"metric"`
}

func (p *Provider) FetchSeries(ctx context.Context, symbol string, _ provider.Mode) (provider.Series, error) {
	var (
		quote   quotePayload
		candles candlePayload
		metrics metricPayload
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.getJSON(gctx, "/quote", url.Values{"symbol": {symbol}}, &quote)
	})
	g.Go(func() error {
		// tolerated failure: candle access is often forbidden on free keys
		now := p.now().Unix()
		from := now - int64(p.cfg.DaysBack)*86400
		q := url.Values{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {fmt.Sprint(from)},
			"to":         {fmt.Sprint(now)},
		}
		if err := p.getJSON(gctx, "/stock/candle", q, &candles); err != nil {
			if provider.IsRateLimited(err) {
				return err
			}
			candles = candlePayload{}
		}
		return nil
	})
	g.Go(func() error {
		// tolerated failure: fundamentals are always best-effort
		q := url.Values{"symbol": {symbol}, "metric": {"all"}}
		if err := p.getJSON(gctx, "/stock/metric", q, &metrics); err != nil {
			if provider.IsRateLimited(err) {
				return err
			}
			metrics = metricPayload{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return provider.Series{}, err
	}

	if quote.Current <= 0 || !provider.Finite(quote.Current) {
		return provider.Series{}, provider.NoData(p.cfg.Name, fmt.Sprintf("missing quote price for %s", symbol))
	}

	live := quote.Current
	series := provider.Series{
		Points:       normalizeCandles(candles),
		LivePrice:    &live,
		Fundamentals: normalizeMetrics(metrics),
	}
	return series, nil
}

func (p *Provider) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("token", p.cfg.APIKey)
	reqURL := fmt.Sprintf("%s%s?%s", p.cfg.BaseURL, path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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
		return fmt.Errorf("GET %s -> %d: %s", path, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// normalizeCandles converts the ascending parallel arrays into points
// newest first. A status other than "ok" (typically "no_data") yields an
// empty history, which downgrades the snapshot to price-only rather than
// failing it. Bars with non-finite closes are skipped.
func normalizeCandles(c candlePayload) []provider.PricePoint {
	if c.Status != "ok" || len(c.Closes) == 0 || len(c.Closes) != len(c.Timestamps) {
		return nil
	}
	points := make([]provider.PricePoint, 0, len(c.Closes))
	for i := len(c.Closes) - 1; i >= 0; i-- {
		if !provider.Finite(c.Closes[i]) {
			continue
		}
		points = append(points, provider.PricePoint{
			Date:  time.Unix(c.Timestamps[i], 0).UTC().Format("2006-01-02"),
			Close: c.Closes[i],
		})
	}
	return points
}

// normalizeMetrics maps the metric block into raw-unit fundamentals.
// Finnhub reports market cap in millions; it is converted to plain
// currency units so the builder's rescale is uniform across providers.
func normalizeMetrics(m metricPayload) provider.Fundamentals {
	out := provider.Fundamentals{}
	if m.Metric.MarketCap != nil && provider.Finite(*m.Metric.MarketCap) && *m.Metric.MarketCap > 0 {
		raw := *m.Metric.MarketCap * 1e6
		out.MarketCap = &raw
	}
	if m.Metric.PETTM != nil && provider.Finite(*m.Metric.PETTM) {
		pe := *m.Metric.PETTM
		out.TrailingPE = &pe
	}
	if m.Metric.Beta != nil && provider.Finite(*m.Metric.Beta) {
		b := *m.Metric.Beta
		out.Beta = &b
	}
	return out
}
