package scoring

import (
	"fmt"
	"strings"
)

// Lead classification tiers.
const (
	TierHot  = "hot"
	TierWarm = "warm"
	TierCold = "cold"
)

// Signal weights. The five signals sum to 100.
const (
	weightBudget    = 30
	weightTimeline  = 25
	weightAuthority = 20
	weightChallenge = 15
	weightSolution  = 10
)

// Answers holds the free-text discovery answers the qualification scorer
// evaluates.
type Answers struct {
	Budget          string `json:"budget,omitempty"`
	Timeline        string `json:"timeline,omitempty"`
	Authority       string `json:"authority,omitempty"`
	Challenge       string `json:"challenge,omitempty"`
	CurrentSolution string `json:"current_solution,omitempty"`
}

// Qualification is the scored outcome for one lead.
type Qualification struct {
	Score          int            `json:"score"`
	Classification string         `json:"classification"`
	Reasoning      string         `json:"reasoning"`
	Signals        map[string]int `json:"signals"`
}

// QualifyLead scores five independent signals with fixed weights
// (30/25/20/15/10) and classifies the total: hot at 80+, warm at 60+, cold
// below. Each signal contributes a rationale line to the reasoning string.
func QualifyLead(answers Answers) Qualification {
	var reasons []string
	signals := make(map[string]int, 5)

	record := func(name string, score int, rationale string) {
		signals[name] = score
		reasons = append(reasons, fmt.Sprintf("%s: %s (%d pts)", name, rationale, score))
	}

	score, rationale := scoreBudget(answers.Budget)
	record("budget", score, rationale)

	score, rationale = scoreTimeline(answers.Timeline)
	record("timeline", score, rationale)

	score, rationale = scoreAuthority(answers.Authority)
	record("authority", score, rationale)

	score, rationale = scoreChallenge(answers.Challenge)
	record("challenge", score, rationale)

	score, rationale = scoreCurrentSolution(answers.CurrentSolution)
	record("current_solution", score, rationale)

	total := 0
	for _, s := range signals {
		total += s
	}

	classification := TierCold
	switch {
	case total >= 80:
		classification = TierHot
	case total >= 60:
		classification = TierWarm
	}

	return Qualification{
		Score:          total,
		Classification: classification,
		Reasoning:      strings.Join(reasons, "; "),
		Signals:        signals,
	}
}

func containsAny(s string, keywords ...string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func scoreBudget(answer string) (int, string) {
	switch {
	case strings.TrimSpace(answer) == "":
		return 0, "no budget information"
	case containsAny(answer, "no budget", "none", "can't afford", "cannot afford"):
		return 0, "no budget available"
	case containsAny(answer, "approved", "allocated", "ready to spend", "ready", "$", "k budget"):
		return weightBudget, "budget approved or committed"
	case containsAny(answer, "planning", "considering", "flexible", "exploring", "depends"):
		return weightBudget / 2, "budget under consideration"
	default:
		return 10, "budget mentioned without commitment"
	}
}

func scoreTimeline(answer string) (int, string) {
	switch {
	case strings.TrimSpace(answer) == "":
		return 0, "no timeline given"
	case containsAny(answer, "immediately", "asap", "urgent", "right away", "this week", "this month", "now"):
		return weightTimeline, "urgent timeline"
	case containsAny(answer, "quarter", "few months", "this year", "soon"):
		return 15, "near-term timeline"
	case containsAny(answer, "next year", "someday", "eventually", "no rush"):
		return 5, "distant timeline"
	default:
		return 10, "indeterminate timeline"
	}
}

func scoreAuthority(answer string) (int, string) {
	switch {
	case strings.TrimSpace(answer) == "":
		return 0, "no authority information"
	case containsAny(answer, "ceo", "founder", "owner", "president", "decision maker", "i decide", "final say"):
		return weightAuthority, "decision-maker authority"
	case containsAny(answer, "director", "vp", "head of", "manager", "influence", "recommend"):
		return 12, "influencer role"
	default:
		return 5, "authority unclear"
	}
}

// scoreChallenge rewards description clarity by length: a detailed
// problem statement signals a real, understood need.
func scoreChallenge(answer string) (int, string) {
	length := len(strings.TrimSpace(answer))
	switch {
	case length == 0:
		return 0, "no challenge described"
	case length >= 200:
		return weightChallenge, "detailed challenge description"
	case length >= 100:
		return 12, "clear challenge description"
	case length >= 40:
		return 8, "brief challenge description"
	default:
		return 4, "vague challenge description"
	}
}

func scoreCurrentSolution(answer string) (int, string) {
	switch {
	case strings.TrimSpace(answer) == "":
		return 0, "no prior-solution context"
	case containsAny(answer, "currently use", "currently using", "switching", "tried", "replacing", "outgrown"):
		return weightSolution, "active solution context"
	default:
		return 6, "some solution context"
	}
}
