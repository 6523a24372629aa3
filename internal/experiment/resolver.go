package experiment

import (
	"math/rand/v2"
	"net/url"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/zine-studio/zine-landing/internal/persist"
)

// Sampler returns a uniformly random element of values. values is never empty.
type Sampler func(values []string) string

// UniformSampler draws from math/rand/v2.
func UniformSampler(values []string) string {
	return values[rand.IntN(len(values))]
}

// Resolve picks a value with precedence forced > stored > random. Candidates
// outside allowed are treated as absent. The result is always a member of
// allowed. allowed must not be empty.
func Resolve(allowed []string, forced, stored string, sample Sampler) (string, Source) {
	exp := Experiment{Values: allowed}
	if exp.Allows(forced) {
		return forced, SourceForced
	}
	if exp.Allows(stored) {
		return stored, SourceStored
	}
	if sample == nil {
		sample = UniformSampler
	}
	v := sample(allowed)
	if !exp.Allows(v) {
		// A misbehaving sampler must not leak an out-of-range arm.
		v = allowed[0]
	}
	return v, SourceRandom
}

// Resolver binds Resolve to a visitor's persisted state.
type Resolver struct {
	state  persist.Persistence
	sample Sampler
	log    *zap.Logger
}

// NewResolver builds a resolver. A nil state behaves like persist.Nop and a
// nil sampler uses UniformSampler.
func NewResolver(state persist.Persistence, sample Sampler) *Resolver {
	if state == nil {
		state = persist.Nop{}
	}
	if sample == nil {
		sample = UniformSampler
	}
	return &Resolver{state: state, sample: sample, log: zap.L()}
}

// Resolve assigns the visitor to an arm of exp. Forced and freshly drawn
// values are written back with Retention, overwriting prior state; a valid
// stored value is reused without a write. Storage failures are logged and
// ignored: resolution always yields a legal value.
func (r *Resolver) Resolve(exp Experiment, forced string) Assignment {
	if len(exp.Values) == 0 {
		// Misconfigured experiment: nothing to draw from, nothing worth storing.
		return Assignment{Experiment: exp, Value: exp.Default, Source: SourceForced}
	}

	stored, ok, err := r.state.Get(exp.StorageKey)
	if err != nil {
		r.log.Debug("variant store read failed",
			zap.String("experiment", exp.Name),
			zap.Error(err),
		)
		stored = ""
	} else if !ok {
		stored = ""
	}

	value, source := Resolve(exp.Values, forced, stored, r.sample)

	if source != SourceStored {
		if err := r.state.Set(exp.StorageKey, value, Retention); err != nil {
			r.log.Debug("variant store write failed",
				zap.String("experiment", exp.Name),
				zap.String("value", value),
				zap.Error(err),
			)
		}
	}

	return Assignment{Experiment: exp, Value: value, Source: source}
}

// Overrides are the build-time forced arms, read from the environment.
type Overrides struct {
	Variant string `env:"VARIANT"`
	Price   string `env:"PRICE"`
}

// LoadOverrides reads VARIANT and PRICE from the process environment.
func LoadOverrides() (Overrides, error) {
	var o Overrides
	if err := env.Parse(&o); err != nil {
		return Overrides{}, err
	}
	return o, nil
}

// For returns the raw override configured for exp.
func (o Overrides) For(exp Experiment) string {
	switch exp.EnvVar {
	case "VARIANT":
		return o.Variant
	case "PRICE":
		return o.Price
	}
	return ""
}

// Forced returns the validated forced candidate for exp: the query parameter
// wins over the environment, and invalid values at either tier are skipped.
func Forced(exp Experiment, query url.Values, o Overrides) string {
	if query != nil {
		if v := query.Get(exp.QueryParam); exp.Allows(v) {
			return v
		}
	}
	if v := o.For(exp); exp.Allows(v) {
		return v
	}
	return ""
}
