package funnel

import (
	"context"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// Emitter is the subset of telemetry.Emitter the funnel needs.
type Emitter interface {
	Emit(ctx context.Context, name string, props telemetry.Props)
}

// Event names emitted by the funnel itself.
const (
	EventPageView        = "page_view"
	EventDeviceInfo      = "device_info"
	EventFunnelStep      = "funnel_step"
	EventWaitlistSubmit  = "waitlist_submit"
	EventWaitlistSuccess = "waitlist_success"
)

// clientEvents are the interactions browsers may report through the events
// endpoint, with the category each defaults to. Step views are emitted by the
// server when it renders the step.
var clientEvents = map[string]string{
	"hero_cta_click":      "conversion",
	"card_learn_more":     "engagement",
	"style_preview_click": "engagement",
	"final_cta_click":     "conversion",
	"purpose_selected":    "engagement",
	"theme_selected":      "engagement",
	"audience_selected":   "engagement",
	"audience_continue":   "conversion",
	"device_info":         "technical",
}

// Step view events, emitted when a funnel page is rendered.
const (
	EventPurposeStepView  = "purpose_step_view"
	EventThemeStepView    = "theme_step_view"
	EventAudienceStepView = "audience_step_view"
	EventThanksPageVisit  = "thanks_page_visit"
)

// IsClientEvent reports whether browsers may send name.
func IsClientEvent(name string) bool {
	_, ok := clientEvents[name]
	return ok
}

const (
	maxClientProps    = 24
	maxClientValueLen = 256
)

// SanitizeClientProps bounds a browser-supplied property bag: at most a
// fixed number of scalar properties, kept in key order, strings truncated
// on a rune boundary, and a category filled in when missing. Nested values
// are dropped.
func SanitizeClientProps(name string, in map[string]any) telemetry.Props {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(telemetry.Props, len(in)+1)
	for _, k := range keys {
		if len(out) >= maxClientProps {
			break
		}
		if k == "" || len(k) > 64 {
			continue
		}
		switch tv := in[k].(type) {
		case string:
			out[k] = truncate(tv, maxClientValueLen)
		case float64, bool, nil:
			out[k] = tv
		}
	}
	if c, ok := out[telemetry.PropCategory].(string); !ok || c == "" {
		out[telemetry.PropCategory] = clientEvents[name]
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TrackPageView emits a navigation event for path.
func TrackPageView(ctx context.Context, em Emitter, path string) {
	em.Emit(ctx, EventPageView, telemetry.Props{
		telemetry.PropCategory: "navigation",
		telemetry.PropLabel:    path,
		"page":                 path,
	})
}

// TrackStep emits a conversion funnel step. extra is merged under the step's
// own properties.
func TrackStep(ctx context.Context, em Emitter, step string, extra telemetry.Props) {
	props := telemetry.Props{}
	for k, v := range extra {
		props[k] = v
	}
	props[telemetry.PropCategory] = "conversion"
	props[telemetry.PropLabel] = step
	em.Emit(ctx, EventFunnelStep, props)
}

var (
	mobileUA = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	tabletUA = regexp.MustCompile(`(?i)iPad|Android`)
	phoneUA  = regexp.MustCompile(`(?i)Android.*Mobile`)
)

// Device describes the client from its user agent and reported screen.
type Device struct {
	UserAgent      string
	IsMobile       bool
	IsTablet       bool
	ScreenWidth    int
	ScreenHeight   int
	ViewportWidth  int
	ViewportHeight int
}

// DetectDevice classifies a user agent. Android counts as a tablet unless
// the agent also says Mobile.
func DetectDevice(userAgent string) Device {
	tablet := tabletUA.MatchString(userAgent) && !phoneUA.MatchString(userAgent)
	return Device{
		UserAgent: userAgent,
		IsMobile:  mobileUA.MatchString(userAgent),
		IsTablet:  tablet,
	}
}

// TrackDevice emits device_info for d.
func TrackDevice(ctx context.Context, em Emitter, d Device) {
	em.Emit(ctx, EventDeviceInfo, telemetry.Props{
		telemetry.PropCategory: "technical",
		"is_mobile":            d.IsMobile,
		"is_tablet":            d.IsTablet,
		"screen_width":         d.ScreenWidth,
		"screen_height":        d.ScreenHeight,
		"viewport_width":       d.ViewportWidth,
		"viewport_height":      d.ViewportHeight,
		"user_agent":           d.UserAgent,
	})
}

// TrackWaitlist emits the submit and success events for an accepted
// submission.
func TrackWaitlist(ctx context.Context, em Emitter, style string) {
	em.Emit(ctx, EventWaitlistSubmit, telemetry.Props{
		telemetry.PropCategory: "conversion",
		telemetry.PropLabel:    style,
		telemetry.PropValue:    1,
	})
	em.Emit(ctx, EventWaitlistSuccess, telemetry.Props{
		telemetry.PropCategory: "conversion",
		telemetry.PropLabel:    style,
	})
}

// SelectionKeys returns the keys a selection event remembers value under.
// Unknown events and values outside the step's catalog return nil.
func SelectionKeys(event, value string) []string {
	switch event {
	case "purpose_selected":
		if IsPurpose(value) {
			return []string{KeyPurpose}
		}
	case "theme_selected":
		if IsTheme(value) {
			return []string{KeyTheme, KeyStyle}
		}
	case "audience_selected":
		if IsAudience(value) {
			return []string{KeyAudience}
		}
	}
	return nil
}
