package snapshot

import (
	"testing"

	"marketsnap/internal/provider"
)

func seriesOf(closes ...float64) provider.Series {
	pts := make([]provider.PricePoint, len(closes))
	for i, c := range closes {
		pts[i] = provider.PricePoint{Date: "2026-02-13", Close: c}
	}
	return provider.Series{Points: pts}
}

func TestBuild_PrefersLivePrice(t *testing.T) {
	raw := seriesOf(100, 99, 98, 97, 96, 95, 94)
	raw.LivePrice = fv(101.239)

	snap, err := Build(raw, "finnhub", FixedClock("2026-02-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Price != 101.24 {
		t.Fatalf("price: want live 101.24, got %v", snap.Price)
	}
	// windows come from the close series, not the live quote
	if snap.Windows.W1 == nil || *snap.Windows.W1 != Round1((100/95.0-1)*100) {
		t.Fatalf("w1 must be close-to-close: got %v", snap.Windows.W1)
	}
	if snap.AsOf != "2026-02-14" {
		t.Fatalf("asOf: want capture date, got %q", snap.AsOf)
	}
	if snap.Source != "finnhub" {
		t.Fatalf("source: got %q", snap.Source)
	}
}

func TestBuild_FallsBackToNewestClose(t *testing.T) {
	raw := seriesOf(75.974, 74, 73, 72, 71, 70)
	snap, err := Build(raw, "alpha-vantage", FixedClock("2026-02-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Price != 75.97 {
		t.Fatalf("price: want 75.97, got %v", snap.Price)
	}
}

func TestBuild_NoUsablePrice(t *testing.T) {
	_, err := Build(provider.Series{}, "alpha-vantage", FixedClock("2026-02-14"))
	if err == nil {
		t.Fatal("want insufficient-data error for empty series")
	}
	kind, ok := provider.KindOf(err)
	if !ok || kind != provider.KindInsufficientData {
		t.Fatalf("want KindInsufficientData, got %v (provider err=%v)", kind, ok)
	}
}

func TestBuild_QuoteOnlySeries(t *testing.T) {
	raw := provider.Series{LivePrice: fv(182.8)}
	snap, err := Build(raw, "finnhub", FixedClock("2026-02-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Price != 182.8 {
		t.Fatalf("price: got %v", snap.Price)
	}
	if snap.Windows.W1 != nil || snap.Windows.Y1 != nil {
		t.Fatalf("quote-only series must have nil windows: %+v", snap.Windows)
	}
}

func TestBuild_MarketCapRescaledToBillions(t *testing.T) {
	raw := seriesOf(182.8, 182, 181, 180, 179, 178)
	raw.Fundamentals = provider.Fundamentals{
		MarketCap:  fv(4_672_800_000_000),
		TrailingPE: fv(96.6),
		Beta:       fv(1.65),
	}
	snap, err := Build(raw, "yahoo", FixedClock("2026-02-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := snap.Fundamentals
	if f.MarketCapB == nil || *f.MarketCapB != 4672.8 {
		t.Fatalf("marketCapB: want 4672.8, got %v", f.MarketCapB)
	}
	if f.PE == nil || *f.PE != 96.6 {
		t.Fatalf("pe: want pass-through 96.6, got %v", f.PE)
	}
	if f.Beta == nil || *f.Beta != 1.65 {
		t.Fatalf("beta: want pass-through 1.65, got %v", f.Beta)
	}
}

func TestBuild_MissingFundamentalsStayNil(t *testing.T) {
	raw := seriesOf(100, 99, 98, 97, 96, 95)
	snap, err := Build(raw, "alpha-vantage", FixedClock("2026-02-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := snap.Fundamentals
	if f.MarketCapB != nil || f.PE != nil || f.Beta != nil {
		t.Fatalf("absent fundamentals must stay nil, got %+v", f)
	}
}
