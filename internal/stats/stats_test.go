package stats_test

import (
	"math"
	"testing"

	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/stats"
	"github.com/zine-studio/zine-landing/internal/store"
)

func TestWilsonInterval_Ranges(t *testing.T) {
	tests := []struct {
		name              string
		successes, trials int
		lowMin, lowMax    float64
		highMin, highMax  float64
	}{
		{"half", 50, 100, 0.38, 0.42, 0.58, 0.62},
		{"low", 5, 100, 0.01, 0.03, 0.09, 0.13},
		{"high", 95, 100, 0.87, 0.91, 0.97, 0.99},
		{"none", 0, 100, 0, 0, 0.01, 0.05},
		{"all", 100, 100, 0.95, 0.99, 0.99, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower, upper := stats.WilsonInterval(tt.successes, tt.trials, 0.95)
			if lower < tt.lowMin || lower > tt.lowMax {
				t.Errorf("lower bound %f not in [%f, %f]", lower, tt.lowMin, tt.lowMax)
			}
			if upper < tt.highMin || upper > tt.highMax {
				t.Errorf("upper bound %f not in [%f, %f]", upper, tt.highMin, tt.highMax)
			}
		})
	}
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 0, 0.95)
	if lower != 0 || upper != 0 {
		t.Errorf("expected (0, 0) for zero trials, got (%f, %f)", lower, upper)
	}
}

func TestWilsonInterval_SmallSampleIsWide(t *testing.T) {
	lower, upper := stats.WilsonInterval(5, 10, 0.95)
	if upper-lower < 0.3 {
		t.Errorf("interval width %f too narrow for small sample", upper-lower)
	}
}

func TestZScore(t *testing.T) {
	tests := []struct {
		confidence float64
		expected   float64
	}{
		{0.80, 1.2816},
		{0.90, 1.645},
		{0.95, 1.96},
		{0.99, 2.576},
	}
	for _, tt := range tests {
		z := stats.ZScore(tt.confidence)
		if math.Abs(z-tt.expected) > 0.01 {
			t.Errorf("ZScore(%f) = %f, want %f", tt.confidence, z, tt.expected)
		}
	}
}

func TestSignificanceTest(t *testing.T) {
	if c := stats.SignificanceTest(100, 1000, 50, 1000); c < 0.95 {
		t.Errorf("expected high confidence for 10%% vs 5%%, got %f", c)
	}
	if c := stats.SignificanceTest(50, 1000, 50, 1000); math.Abs(c-0.5) > 0.01 {
		t.Errorf("expected ~0.5 for equal rates, got %f", c)
	}
	if c := stats.SignificanceTest(5, 20, 2, 20); c > 0.95 {
		t.Errorf("expected lower confidence for small sample, got %f", c)
	}
	if c := stats.SignificanceTest(10, 100, 0, 0); c != 0.5 {
		t.Errorf("expected 0.5 when one arm has no exposures, got %f", c)
	}
}

func TestAnalyze_PriceTest(t *testing.T) {
	exposures := []store.ArmCount{{Value: "15", Count: 400}, {Value: "40", Count: 400}}
	conversions := []store.ArmCount{{Value: "15", Count: 20}, {Value: "40", Count: 48}}

	result := stats.Analyze(experiment.PriceTest, exposures, conversions)

	if result.Experiment != "price_test" {
		t.Errorf("expected experiment price_test, got %s", result.Experiment)
	}
	if len(result.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(result.Arms))
	}
	if result.Arms[0].Value != "15" || result.Arms[1].Value != "40" {
		t.Errorf("arms out of experiment order: %+v", result.Arms)
	}
	if math.Abs(result.Arms[1].Rate-0.12) > 0.0001 {
		t.Errorf("expected rate 0.12 for arm 40, got %f", result.Arms[1].Rate)
	}
	if result.LeadingArm().Value != "40" {
		t.Errorf("expected 40 to lead, got %s", result.LeadingArm().Value)
	}
	if !result.Confident {
		t.Errorf("expected a confident result, got level %f", result.ConfidenceLevel)
	}
	for _, arm := range result.Arms {
		if arm.CILower > arm.Rate || arm.CIUpper < arm.Rate {
			t.Errorf("arm %s: rate %f outside CI [%f, %f]", arm.Value, arm.Rate, arm.CILower, arm.CIUpper)
		}
	}
}

func TestAnalyze_NoData(t *testing.T) {
	result := stats.Analyze(experiment.LandingDesign, nil, nil)

	if len(result.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(result.Arms))
	}
	if result.Leading != 0 {
		t.Errorf("expected control to lead with no data, got %d", result.Leading)
	}
	if result.Confident {
		t.Error("expected no confidence without data")
	}
}

func TestAnalyze_IgnoresUnknownArms(t *testing.T) {
	exposures := []store.ArmCount{{Value: "zen", Count: 10}, {Value: "legacy", Count: 500}}
	conversions := []store.ArmCount{{Value: "legacy", Count: 400}}

	result := stats.Analyze(experiment.LandingDesign, exposures, conversions)

	for _, arm := range result.Arms {
		if arm.Value == "legacy" {
			t.Fatal("unknown arm should not be reported")
		}
	}
	if result.Arms[0].Exposures != 10 {
		t.Errorf("expected 10 exposures for zen, got %d", result.Arms[0].Exposures)
	}
}
