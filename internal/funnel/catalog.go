// Package funnel holds the landing funnel's choice catalogs, the events its
// steps emit, and waitlist input validation.
package funnel

import (
	"time"

	"github.com/zine-studio/zine-landing/internal/persist"
)

// Defaults used when a step is reached without an earlier choice.
const (
	UndisclosedPurpose = "undisclosed"
	UnsetTheme         = "unset"
	DefaultStyle       = "minimal"
)

// Option is one selectable card in a funnel step.
type Option struct {
	ID          string
	Name        string
	Description string
}

var Purposes = []Option{
	{ID: "event", Name: "An event", Description: "Weddings, birthdays, milestone moments"},
	{ID: "travel", Name: "A trip", Description: "Travel stories, adventures, city guides"},
	{ID: "gifting", Name: "A gift", Description: "Something thoughtful for someone you love"},
}

var Themes = []Option{
	{ID: "minimal", Name: "Minimal"},
	{ID: "warm", Name: "Warm"},
	{ID: "bold", Name: "Bold"},
	{ID: "vintage", Name: "Vintage"},
	{ID: "artistic", Name: "Artistic"},
}

var Audiences = []Option{
	{ID: "myself", Name: "Myself", Description: "A personal keepsake to reflect on when you need it."},
	{ID: "partner", Name: "My partner", Description: "A thoughtful way to revisit your favorite moments together."},
	{ID: "family", Name: "Family", Description: "Pull scattered memories into something everyone can hold."},
	{ID: "friend", Name: "A friend", Description: "Surprise someone with snapshots of your inside jokes."},
	{ID: "team", Name: "A team or group", Description: "Celebrate a shared win or milestone in print."},
}

// Styles are the looks the thanks page can show. It is a superset of Themes.
var Styles = []Option{
	{ID: "minimal", Name: "Minimal"},
	{ID: "warm", Name: "Warm"},
	{ID: "bold", Name: "Bold"},
	{ID: "vintage", Name: "Vintage"},
	{ID: "modern", Name: "Modern"},
	{ID: "artistic", Name: "Artistic"},
}

func known(opts []Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

// OptionName returns the display name for id, or id itself.
func OptionName(opts []Option, id string) string {
	for _, o := range opts {
		if o.ID == id {
			return o.Name
		}
	}
	return id
}

func IsPurpose(id string) bool  { return known(Purposes, id) }
func IsTheme(id string) bool    { return known(Themes, id) }
func IsAudience(id string) bool { return known(Audiences, id) }
func IsStyle(id string) bool    { return known(Styles, id) }

// NormalizeStyle maps unknown or empty styles to DefaultStyle.
func NormalizeStyle(style string) string {
	if IsStyle(style) {
		return style
	}
	return DefaultStyle
}

// Keys under which a visitor's selections are remembered.
const (
	KeyPurpose  = "selected_purpose"
	KeyTheme    = "selected_theme"
	KeyStyle    = "selected_style"
	KeyAudience = "selected_audience"
)

// SelectionRetention is how long remembered selections are kept.
const SelectionRetention = 30 * 24 * time.Hour

// Selections are the choices a visitor has made so far.
type Selections struct {
	Purpose  string
	Theme    string
	Style    string
	Audience string
}

// LoadSelections reads remembered selections. Read failures leave the field
// empty.
func LoadSelections(p persist.Persistence) Selections {
	get := func(key string) string {
		v, ok, err := p.Get(key)
		if err != nil || !ok {
			return ""
		}
		return v
	}
	return Selections{
		Purpose:  get(KeyPurpose),
		Theme:    get(KeyTheme),
		Style:    get(KeyStyle),
		Audience: get(KeyAudience),
	}
}

// Resolve fills selections from query values first, then remembered ones,
// then the step defaults.
func (s Selections) Resolve(queryPurpose, queryTheme string) Selections {
	out := s
	switch {
	case queryPurpose != "":
		out.Purpose = queryPurpose
	case out.Purpose == "":
		out.Purpose = UndisclosedPurpose
	}
	switch {
	case queryTheme != "":
		out.Theme = queryTheme
	case out.Theme == "":
		out.Theme = UnsetTheme
	}
	return out
}

// Remember stores one selection. Best effort: the error is returned for
// logging only.
func Remember(p persist.Persistence, key, value string) error {
	return p.Set(key, value, SelectionRetention)
}

// Forget clears a selection.
func Forget(p persist.Persistence, key string) error {
	return p.Remove(key)
}
