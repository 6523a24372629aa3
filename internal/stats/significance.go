package stats

import (
	"math"

	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/store"
)

// Confidence is the level at which a result is called.
const Confidence = 0.95

// Result is the statistical analysis of one experiment.
type Result struct {
	Experiment      string
	Arms            []ArmResult
	Confident       bool    // ConfidenceLevel >= Confidence
	ConfidenceLevel float64 // 0-1
	Leading         int     // index into Arms
}

// LeadingArm returns the arm with the best conversion rate.
func (r *Result) LeadingArm() ArmResult {
	return r.Arms[r.Leading]
}

// ArmResult contains statistics for a single arm.
type ArmResult struct {
	Index       int
	Value       string
	Exposures   int
	Conversions int
	Rate        float64
	CILower     float64
	CIUpper     float64
}

// SignificanceTest performs a two-proportion z-test and returns the
// confidence (0-1) that A converts better than B.
func SignificanceTest(aConv, aViews, bConv, bViews int) float64 {
	if aViews == 0 || bViews == 0 {
		return 0.5
	}

	pA := float64(aConv) / float64(aViews)
	pB := float64(bConv) / float64(bViews)
	pooled := float64(aConv+bConv) / float64(aViews+bViews)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(aViews) + 1/float64(bViews)))

	if se == 0 {
		switch {
		case pA > pB:
			return 1
		case pA < pB:
			return 0
		default:
			return 0.5
		}
	}
	return normalCDF((pA - pB) / se)
}

// Analyze combines per-arm exposure and conversion tallies for exp. Arms are
// reported in the experiment's order with the first as control; tallies for
// values the experiment does not allow are ignored.
func Analyze(exp experiment.Experiment, exposures, conversions []store.ArmCount) *Result {
	seen := tally(exposures)
	converted := tally(conversions)

	arms := make([]ArmResult, len(exp.Values))
	leading := 0
	maxRate := 0.0
	for i, value := range exp.Values {
		n, c := seen[value], converted[value]
		rate := 0.0
		if n > 0 {
			rate = float64(c) / float64(n)
		}
		lower, upper := WilsonInterval(c, n, Confidence)
		arms[i] = ArmResult{
			Index:       i,
			Value:       value,
			Exposures:   n,
			Conversions: c,
			Rate:        rate,
			CILower:     lower,
			CIUpper:     upper,
		}
		if rate > maxRate {
			maxRate = rate
			leading = i
		}
	}

	var level float64
	if len(arms) >= 2 {
		challenger := leading
		if leading == 0 {
			// Control leads: test it against the best challenger.
			challenger = 1
			for i := 2; i < len(arms); i++ {
				if arms[i].Rate > arms[challenger].Rate {
					challenger = i
				}
			}
			level = SignificanceTest(
				arms[0].Conversions, arms[0].Exposures,
				arms[challenger].Conversions, arms[challenger].Exposures,
			)
		} else {
			level = SignificanceTest(
				arms[leading].Conversions, arms[leading].Exposures,
				arms[0].Conversions, arms[0].Exposures,
			)
		}
	}

	return &Result{
		Experiment:      exp.Name,
		Arms:            arms,
		Confident:       level >= Confidence,
		ConfidenceLevel: level,
		Leading:         leading,
	}
}

func tally(counts []store.ArmCount) map[string]int {
	m := make(map[string]int, len(counts))
	for _, c := range counts {
		m[c.Value] += c.Count
	}
	return m
}
