// Package persist holds the key-value persistence capability used by the
// experiment resolver and the exposure tracker.
//
// Callers never branch on where state lives: a request with a visitor gets a
// SQLite-backed store mirrored into cookies, a non-interactive context gets Nop.
package persist

import (
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// ErrUnavailable is returned by stores that cannot persist anything.
var ErrUnavailable = eris.New("persist: storage unavailable")

// Persistence is a string-keyed store with optional expiry.
//
// A zero ttl means the entry lives for the lifetime of the backing scope
// (a browsing session for session stores).
type Persistence interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string, ttl time.Duration) error
	Remove(key string) error
}

// Nop persists nothing. Get always reports absent and Set is a silent no-op.
type Nop struct{}

func (Nop) Get(string) (string, bool, error) { return "", false, nil }
func (Nop) Set(string, string, time.Duration) error { return nil }
func (Nop) Remove(string) error { return nil }

// Dual writes every value to a durable store and a mirror, and reads from the
// durable store only. The mirror exists so server-rendered responses can see
// the value without a durable lookup.
type Dual struct {
	Durable Persistence
	Mirror  Persistence
}

func (d Dual) Get(key string) (string, bool, error) {
	if d.Durable == nil {
		return "", false, nil
	}
	return d.Durable.Get(key)
}

// Set attempts both writes even when the first fails.
func (d Dual) Set(key, value string, ttl time.Duration) error {
	var errs []error
	if d.Durable != nil {
		if err := d.Durable.Set(key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Mirror != nil {
		if err := d.Mirror.Set(key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d Dual) Remove(key string) error {
	var errs []error
	if d.Durable != nil {
		if err := d.Durable.Remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Mirror != nil {
		if err := d.Mirror.Remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Failing is a store whose every operation fails. Useful for exercising
// best-effort callers.
type Failing struct{}

func (Failing) Get(string) (string, bool, error) { return "", false, ErrUnavailable }
func (Failing) Set(string, string, time.Duration) error { return ErrUnavailable }
func (Failing) Remove(string) error { return ErrUnavailable }
