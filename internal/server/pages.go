package server

import (
	"bytes"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/funnel"
	"github.com/zine-studio/zine-landing/internal/telemetry"
)

type funnelPage struct {
	Path     string
	Template string
	Title    string
}

var funnelPages = []funnelPage{
	{Path: "/", Template: "landing", Title: "Turn your photos into a printed zine"},
	{Path: "/start", Template: "start", Title: "What is your zine for?"},
	{Path: "/themes", Template: "themes", Title: "Pick a look"},
	{Path: "/audience", Template: "audience", Title: "Who is it for?"},
	{Path: "/thanks", Template: "thanks", Title: "You're on the list"},
}

// PageData is what every page template renders from.
type PageData struct {
	Title      string
	Path       string
	PageViewID string
	PingMillis int64
	Variant    string
	Price      int
	Selections funnel.Selections
	Style      string
	Purposes   []funnel.Option
	Themes     []funnel.Option
	Audiences  []funnel.Option
	Styles     []funnel.Option
}

func (s *Server) handlePage(p funnelPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		v := visitFrom(ctx)
		q := r.URL.Query()

		// Assignment writes cookies, so it must happen before any body bytes.
		arms := s.resolveAll(ctx, v, r)

		pvID := uuid.NewString()
		s.registry.Begin(ctx, pvID, p.Path)
		funnel.TrackPageView(ctx, s.emitter, p.Path)

		sel := funnel.LoadSelections(v.state).Resolve(q.Get("event"), q.Get("theme"))
		if a := q.Get("audience"); a != "" {
			sel.Audience = a
		}
		style := funnel.DefaultStyle
		switch {
		case funnel.IsStyle(q.Get("style")):
			style = q.Get("style")
		case funnel.IsStyle(sel.Style):
			style = sel.Style
		}

		switch p.Template {
		case "landing":
			funnel.TrackStep(ctx, s.emitter, "landing_page_view", nil)
		case "start":
			s.emitter.Emit(ctx, funnel.EventPurposeStepView, telemetry.Props{
				telemetry.PropCategory: "engagement",
			})
		case "themes":
			s.emitter.Emit(ctx, funnel.EventThemeStepView, telemetry.Props{
				telemetry.PropCategory: "engagement",
				"purpose":              sel.Purpose,
			})
		case "audience":
			s.emitter.Emit(ctx, funnel.EventAudienceStepView, telemetry.Props{
				telemetry.PropCategory: "engagement",
				"purpose":              sel.Purpose,
				"theme":                sel.Theme,
			})
		case "thanks":
			s.emitter.Emit(ctx, funnel.EventThanksPageVisit, telemetry.Props{
				telemetry.PropCategory: "conversion",
				telemetry.PropLabel:    style,
			})
		}

		data := PageData{
			Title:      p.Title,
			Path:       p.Path,
			PageViewID: pvID,
			PingMillis: s.registry.CheckInterval().Milliseconds(),
			Variant:    arms[experiment.LandingDesign.Name].Value,
			Price:      arms[experiment.PriceTest.Name].Int(),
			Selections: sel,
			Style:      style,
			Purposes:   funnel.Purposes,
			Themes:     funnel.Themes,
			Audiences:  funnel.Audiences,
			Styles:     funnel.Styles,
		}

		var buf bytes.Buffer
		if err := s.pages.ExecuteTemplate(&buf, p.Template, data); err != nil {
			s.log.Error("render page", zap.String("page", p.Template), zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)
	}
}
