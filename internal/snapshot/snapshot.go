package snapshot

// Windows is the fixed set of trailing percentage returns. Values are
// rounded to one decimal and nil when there is not enough history to
// compute them. Field names are the wire contract and must not change.
type Windows struct {
	W1 *float64 `json:"w1"`
	M1 *float64 `json:"m1"`
	M3 *float64 `json:"m3"`
	M6 *float64 `json:"m6"`
	Y1 *float64 `json:"y1"`
}

// Fundamentals carries optional company metrics in presentation units:
// market cap in billions (one decimal), trailing P/E and beta as reported.
type Fundamentals struct {
	MarketCapB *float64 `json:"marketCapB"`
	PE         *float64 `json:"pe"`
	Beta       *float64 `json:"beta"`
}

// Snapshot is one normalized point-in-time record for a symbol. AsOf is the
// ISO calendar date the record was captured, which can trail the newest
// close over a weekend or holiday; callers that need the market date of the
// newest close read it from the normalized series instead.
type Snapshot struct {
	Symbol       string       `json:"symbol,omitempty"`
	AsOf         string       `json:"asOf"`
	Price        float64      `json:"price"`
	Windows      Windows      `json:"windows"`
	Fundamentals Fundamentals `json:"fundamentals"`
	Source       string       `json:"source"`
}

// BenchmarkWindows is the subset of windows recorded for a benchmark.
type BenchmarkWindows struct {
	Y1 *float64 `json:"y1"`
}

// Benchmark identifies the comparison symbol and its recorded windows.
type Benchmark struct {
	Symbol  string           `json:"symbol"`
	Windows BenchmarkWindows `json:"windows"`
}

// Relative holds returns of the subject net of the benchmark. A window is
// nil unless both operands were defined; a missing operand is never
// substituted with zero.
type Relative struct {
	VsBenchmark BenchmarkWindows `json:"vsBenchmark"`
}

// RelativeSnapshot is a Snapshot extended with benchmark context.
type RelativeSnapshot struct {
	Snapshot
	Benchmark Benchmark `json:"benchmark"`
	Relative  Relative  `json:"relative"`
}
