// Package experiment assigns visitors to experiment arms and records that
// they were exposed to them.
package experiment

import (
	"slices"
	"strconv"
	"time"
)

// Retention is how long a stored assignment is honored.
const Retention = 180 * 24 * time.Hour

// Source says how an assignment was determined.
type Source string

const (
	SourceForced Source = "forced"
	SourceStored Source = "stored"
	SourceRandom Source = "random"
)

// Experiment describes one A/B test and where its assignment lives.
type Experiment struct {
	Name       string   // telemetry identifier, e.g. "landing_design"
	StorageKey string   // persisted key, e.g. "ab_variant"
	QueryParam string   // URL override parameter
	EnvVar     string   // build-time override variable
	Values     []string // allowed arms, in control-first order
	Default    string   // used when nothing else is available
	ValueKey   string   // if set, exposure events also carry the value as an int under this key
}

var (
	LandingDesign = Experiment{
		Name:       "landing_design",
		StorageKey: "ab_variant",
		QueryParam: "variant",
		EnvVar:     "VARIANT",
		Values:     []string{"zen", "hybrid"},
		Default:    "hybrid",
	}

	PriceTest = Experiment{
		Name:       "price_test",
		StorageKey: "ab_price",
		QueryParam: "price",
		EnvVar:     "PRICE",
		Values:     []string{"15", "40"},
		Default:    "15",
		ValueKey:   "price",
	}
)

// All lists the built-in experiments.
func All() []Experiment {
	return []Experiment{LandingDesign, PriceTest}
}

// Lookup finds a built-in experiment by name.
func Lookup(name string) (Experiment, bool) {
	for _, e := range All() {
		if e.Name == name {
			return e, true
		}
	}
	return Experiment{}, false
}

// Allows reports whether v is one of the experiment's arms.
func (e Experiment) Allows(v string) bool {
	return v != "" && slices.Contains(e.Values, v)
}

// Assignment is the arm a visitor ended up in.
type Assignment struct {
	Experiment Experiment
	Value      string
	Source     Source
}

// Int returns the value as an integer for numeric experiments such as
// PriceTest. Non-numeric values return 0.
func (a Assignment) Int() int {
	n, err := strconv.Atoi(a.Value)
	if err != nil {
		return 0
	}
	return n
}

// Label is the "<experiment>_<value>" label used on exposure events.
func (a Assignment) Label() string {
	return a.Experiment.Name + "_" + a.Value
}
