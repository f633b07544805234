package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"marketsnap/internal/provider"
)

// payload covers both daily functions. On success exactly one of the time
// series maps is populated; on failure the API answers HTTP 200 with an
// informational field instead, which has to be classified by its wording.
// Per-day values stay strings here (Alpha Vantage sends every number
// quoted); coercion happens day by day in normalizeDaily so one bad value
// drops that day instead of failing the decode.
type payload struct {
	Information  string                       `json:"Information"`
	Note         string                       `json:"Note"`
	ErrorMessage string                       `json:"Error Message"`
	Daily        map[string]map[string]string `json:"Time Series (Daily)"`
}

const (
	fieldAdjustedClose = "5. adjusted close"
	fieldClose         = "4. close"
)

// FetchSeries returns the normalized daily close history, newest first.
// ModeFull uses TIME_SERIES_DAILY_ADJUSTED with the full history and the
// adjusted close; ModeCompact uses TIME_SERIES_DAILY with the ~100-session
// compact output and the raw close. Alpha Vantage has no separate quote or
// fundamentals endpoint wired here, so LivePrice and Fundamentals stay
// empty.
func (c *Client) FetchSeries(ctx context.Context, symbol string, mode provider.Mode) (provider.Series, error) {
	function := "TIME_SERIES_DAILY_ADJUSTED"
	outputSize := "full"
	closeField := fieldAdjustedClose
	if mode == provider.ModeCompact {
		function = "TIME_SERIES_DAILY"
		outputSize = "compact"
		closeField = fieldClose
	}

	q := url.Values{}
	for k, vs := range c.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("function", function)
	q.Set("symbol", symbol)
	q.Set("outputsize", outputSize)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return provider.Series{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Series{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return provider.Series{}, provider.RateLimited(c.Name(), strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return provider.Series{}, fmt.Errorf("GET %s -> %d: %s", c.baseURL, resp.StatusCode, string(b))
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return provider.Series{}, fmt.Errorf("decode: %w", err)
	}

	if len(p.Daily) == 0 {
		return provider.Series{}, classifyEmpty(c.Name(), p)
	}

	return provider.Series{Points: normalizeDaily(p.Daily, closeField)}, nil
}

// classifyEmpty maps an informational payload to a typed error. The API
// signals throttling through prose, so the wording is all there is to go
// on; anything unrecognized is surfaced as no-data with the provider's own
// message preserved.
func classifyEmpty(name string, p payload) error {
	msg := p.Information
	if msg == "" {
		msg = p.Note
	}
	if msg == "" {
		msg = p.ErrorMessage
	}
	if msg == "" {
		msg = "empty time series"
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "call volume") ||
		strings.Contains(lower, "call frequency") {
		return provider.RateLimited(name, msg)
	}
	return provider.NoData(name, msg)
}

// normalizeDaily flattens the date-keyed map into points sorted newest
// first. ISO date keys sort lexicographically in date order, so a plain
// descending string sort is exact; malformed keys and days whose close
// fails numeric coercion are dropped without failing the series.
func normalizeDaily(daily map[string]map[string]string, closeField string) []provider.PricePoint {
	dates := make([]string, 0, len(daily))
	for d := range daily {
		if provider.IsISODate(d) {
			dates = append(dates, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	points := make([]provider.PricePoint, 0, len(dates))
	for _, d := range dates {
		raw, ok := daily[d][closeField]
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || !provider.Finite(f) {
			continue
		}
		points = append(points, provider.PricePoint{Date: d, Close: f})
	}
	return points
}
