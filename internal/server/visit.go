package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/persist"
	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// Cookie names carrying visitor identity.
const (
	VisitorCookie = "zl_vid"
	SessionCookie = "zl_sid"
)

// visit is the per-request view of one visitor: who they are and where their
// state lives.
type visit struct {
	telemetry.Visitor
	// state holds visitor-lifetime values, written to SQLite and mirrored
	// into cookies.
	state persist.Persistence
	// markers holds session-lifetime exposure markers.
	markers persist.Persistence
}

type visitContextKey struct{}

func visitFrom(ctx context.Context) *visit {
	v, _ := ctx.Value(visitContextKey{}).(*visit)
	return v
}

// visitorMiddleware identifies the visitor, issuing cookies on first
// contact, and attaches visitor state and identity to the request context.
func (s *Server) visitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies := persist.NewCookieMirror(w, r, s.opts.SecureCookies)

		vid := validID(cookies, VisitorCookie)
		if vid == "" {
			vid = uuid.NewString()
			_ = cookies.Set(VisitorCookie, vid, experiment.Retention)
		}
		sid := validID(cookies, SessionCookie)
		if sid == "" {
			sid = uuid.NewString()
			_ = cookies.Set(SessionCookie, sid, 0)
		}

		ctx := r.Context()
		v := &visit{
			Visitor: telemetry.Visitor{VisitorID: vid, SessionID: sid},
			state: persist.Dual{
				Durable: s.store.VisitorState(ctx, vid),
				Mirror:  cookies,
			},
			markers: s.store.SessionState(ctx, sid),
		}

		ctx = telemetry.WithVisitor(ctx, v.Visitor)
		ctx = context.WithValue(ctx, visitContextKey{}, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validID returns the cookie's value when it is a well-formed uuid.
func validID(cookies *persist.CookieMirror, name string) string {
	v, ok, _ := cookies.Get(name)
	if !ok {
		return ""
	}
	if _, err := uuid.Parse(v); err != nil {
		return ""
	}
	return v
}

// resolveAll assigns the visitor to every experiment and records exposure
// once per session.
func (s *Server) resolveAll(ctx context.Context, v *visit, r *http.Request) map[string]experiment.Assignment {
	resolver := experiment.NewResolver(v.state, s.opts.Sampler)
	exposures := experiment.NewExposureTracker(v.markers, s.emitter)

	out := make(map[string]experiment.Assignment, len(experiment.All()))
	for _, exp := range experiment.All() {
		a := resolver.Resolve(exp, experiment.Forced(exp, r.URL.Query(), s.opts.Overrides))
		exposures.RecordOnce(ctx, a)
		out[exp.Name] = a
	}
	return out
}

// storedArms reads the visitor's current assignments without assigning.
func storedArms(v *visit) map[string]string {
	arms := make(map[string]string)
	for _, exp := range experiment.All() {
		value, ok, err := v.state.Get(exp.StorageKey)
		if err == nil && ok && exp.Allows(value) {
			arms[exp.Name] = value
		}
	}
	return arms
}
