package scoring

import "strings"

// Benchmark holds industry reference numbers for one ad platform.
type Benchmark struct {
	// AvgCostPerLead is the industry average cost per lead in dollars.
	AvgCostPerLead float64

	// MinViableSpend is the smallest budget at which a campaign on this
	// platform is worth running.
	MinViableSpend float64
}

// platformBenchmarks is the industry benchmark table. Platforms not listed
// here still participate in allocation but get no cost adjustment or lead
// estimate.
var platformBenchmarks = map[string]Benchmark{
	"google_ads": {AvgCostPerLead: 45, MinViableSpend: 500},
	"linkedin":   {AvgCostPerLead: 75, MinViableSpend: 1000},
	"facebook":   {AvgCostPerLead: 25, MinViableSpend: 300},
	"instagram":  {AvgCostPerLead: 30, MinViableSpend: 300},
	"twitter":    {AvgCostPerLead: 40, MinViableSpend: 250},
	"tiktok":     {AvgCostPerLead: 20, MinViableSpend: 400},
}

// defaultMinViableSpend applies to platforms absent from the benchmark
// table.
const defaultMinViableSpend = 100

// BenchmarkFor returns the benchmark row for a platform, normalizing the
// name ("Google Ads" and "google_ads" are the same platform).
func BenchmarkFor(platform string) (Benchmark, bool) {
	b, ok := platformBenchmarks[normalizePlatform(platform)]
	return b, ok
}

// MinViableSpendFor returns a platform's minimum viable spend, falling back
// to the default for unknown platforms.
func MinViableSpendFor(platform string) float64 {
	if b, ok := BenchmarkFor(platform); ok {
		return b.MinViableSpend
	}
	return defaultMinViableSpend
}

func normalizePlatform(platform string) string {
	s := strings.ToLower(strings.TrimSpace(platform))
	return strings.ReplaceAll(s, " ", "_")
}

// averageCostPerLead is the mean CPL across the benchmark table, used as
// the reference point for cost-efficiency adjustments.
func averageCostPerLead() float64 {
	var sum float64
	for _, b := range platformBenchmarks {
		sum += b.AvgCostPerLead
	}
	return sum / float64(len(platformBenchmarks))
}
