package scoring

import (
	"fmt"
	"math"
	"strings"
)

// ICP describes the ideal customer profile the advisor allocates against.
type ICP struct {
	Industry    string   `json:"industry,omitempty"`
	Audience    string   `json:"audience,omitempty"`     // "b2b" or "b2c"
	CompanySize string   `json:"company_size,omitempty"` // "smb", "mid_market", "enterprise"
	AgeRange    string   `json:"age_range,omitempty"`
	JobTitles   []string `json:"job_titles,omitempty"`
}

// Allocation is one platform's share of the total budget.
type Allocation struct {
	Platform             string  `json:"platform"`
	Score                int     `json:"score"`
	Amount               float64 `json:"amount"`
	Rationale            string  `json:"rationale"`
	EstimatedCostPerLead float64 `json:"estimated_cost_per_lead,omitempty"`
	EstimatedLeads       int     `json:"estimated_leads,omitempty"`
}

// InsufficientBudgetError reports that no platform's minimum viable spend
// can be met. SmallestMinimum names the cheapest entry point so callers can
// suggest a workable budget.
type InsufficientBudgetError struct {
	TotalBudget     float64
	SmallestMinimum float64
	Platform        string
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient budget: $%.2f does not meet any platform's minimum viable spend (lowest is %s at $%.2f)",
		e.TotalBudget, e.Platform, e.SmallestMinimum)
}

// AllocateBudget scores each candidate platform 0-100 against the profile,
// then splits the total proportionally to score. Platforms whose share
// would fall below their minimum viable spend are excluded and the rest is
// reallocated; the iteration is bounded by the platform count so it always
// terminates.
func AllocateBudget(totalBudget float64, platforms []string, icp ICP) ([]Allocation, error) {
	if totalBudget <= 0 {
		return nil, fmt.Errorf("total budget must be positive, got %.2f", totalBudget)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("at least one platform is required")
	}

	type candidate struct {
		platform  string
		score     int
		rationale string
	}

	surviving := make([]candidate, 0, len(platforms))
	for _, platform := range platforms {
		score, rationale := scorePlatform(platform, icp)
		surviving = append(surviving, candidate{platform: platform, score: score, rationale: rationale})
	}

	// Fixed-point reallocation: each pass either keeps every survivor above
	// its minimum (done) or drops at least one, so len(platforms) passes
	// suffice.
	for iteration := 0; iteration < len(platforms); iteration++ {
		scoreSum := 0
		for _, c := range surviving {
			scoreSum += c.score
		}
		if scoreSum == 0 {
			surviving = nil
			break
		}

		kept := surviving[:0]
		for _, c := range surviving {
			share := totalBudget * float64(c.score) / float64(scoreSum)
			if share >= MinViableSpendFor(c.platform) {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(surviving) {
			break
		}
		surviving = kept
		if len(surviving) == 0 {
			break
		}
	}

	if len(surviving) == 0 {
		smallest := math.MaxFloat64
		smallestPlatform := ""
		for _, platform := range platforms {
			if min := MinViableSpendFor(platform); min < smallest {
				smallest = min
				smallestPlatform = platform
			}
		}
		return nil, &InsufficientBudgetError{
			TotalBudget:     totalBudget,
			SmallestMinimum: smallest,
			Platform:        smallestPlatform,
		}
	}

	scoreSum := 0
	for _, c := range surviving {
		scoreSum += c.score
	}

	allocations := make([]Allocation, len(surviving))
	allocated := 0.0
	for i, c := range surviving {
		amount := math.Round(totalBudget*float64(c.score)/float64(scoreSum)*100) / 100
		if i == len(surviving)-1 {
			// Absorb rounding drift so the entries sum to the input total.
			amount = math.Round((totalBudget-allocated)*100) / 100
		}
		allocated += amount

		alloc := Allocation{
			Platform:  c.platform,
			Score:     c.score,
			Amount:    amount,
			Rationale: c.rationale,
		}
		if b, ok := BenchmarkFor(c.platform); ok {
			alloc.EstimatedCostPerLead = b.AvgCostPerLead
			alloc.EstimatedLeads = int(math.Floor(amount / b.AvgCostPerLead))
		}
		allocations[i] = alloc
	}

	return allocations, nil
}

// scorePlatform computes a 0-100 suitability score from audience and
// firmographic fit plus a cost-efficiency adjustment against the benchmark
// average.
func scorePlatform(platform string, icp ICP) (int, string) {
	score := 50
	var reasons []string

	name := normalizePlatform(platform)
	audience := strings.ToLower(icp.Audience)
	size := strings.ToLower(icp.CompanySize)

	switch audience {
	case "b2b":
		switch name {
		case "linkedin":
			score += 25
			reasons = append(reasons, "strong B2B audience match")
		case "google_ads":
			score += 10
			reasons = append(reasons, "high-intent B2B search traffic")
		case "twitter":
			score += 5
			reasons = append(reasons, "moderate B2B reach")
		case "instagram", "tiktok":
			score -= 15
			reasons = append(reasons, "weak B2B presence")
		case "facebook":
			score -= 5
			reasons = append(reasons, "limited B2B targeting")
		}
	case "b2c":
		switch name {
		case "facebook", "instagram":
			score += 20
			reasons = append(reasons, "strong consumer reach")
		case "tiktok":
			score += 15
			reasons = append(reasons, "high consumer engagement")
		case "google_ads":
			score += 10
			reasons = append(reasons, "broad consumer search coverage")
		case "linkedin":
			score -= 20
			reasons = append(reasons, "professional network mismatch for consumer products")
		}
	}

	switch size {
	case "enterprise":
		if name == "linkedin" {
			score += 10
			reasons = append(reasons, "enterprise decision-maker targeting")
		}
	case "smb":
		switch name {
		case "facebook":
			score += 10
			reasons = append(reasons, "cost-effective SMB reach")
		case "google_ads":
			score += 5
			reasons = append(reasons, "local SMB search intent")
		}
	}

	if strings.Contains(icp.AgeRange, "18") || strings.Contains(icp.AgeRange, "24") {
		switch name {
		case "tiktok":
			score += 15
			reasons = append(reasons, "dominant 18-24 demographic")
		case "instagram":
			score += 10
			reasons = append(reasons, "strong young-adult demographic")
		}
	}

	if b, ok := BenchmarkFor(platform); ok {
		avg := averageCostPerLead()
		switch {
		case b.AvgCostPerLead < avg*0.8:
			score += 10
			reasons = append(reasons, fmt.Sprintf("below-average cost per lead ($%.0f vs $%.0f industry average)", b.AvgCostPerLead, avg))
		case b.AvgCostPerLead > avg*1.5:
			score -= 15
			reasons = append(reasons, fmt.Sprintf("well above average cost per lead ($%.0f vs $%.0f industry average)", b.AvgCostPerLead, avg))
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	rationale := "baseline platform fit"
	if len(reasons) > 0 {
		rationale = strings.Join(reasons, "; ")
	}

	return score, rationale
}
