package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zine-studio/zine-landing/internal/engagement"
	"github.com/zine-studio/zine-landing/internal/funnel"
	"github.com/zine-studio/zine-landing/internal/store"
	"github.com/zine-studio/zine-landing/internal/telemetry"
)

const maxBodyBytes = 16 << 10

type HealthResponse struct {
	Status          string `json:"status"`
	WaitlistCount   int    `json:"waitlist_count"`
	ActivePageViews int    `json:"active_page_views"`
	DBSizeBytes     int64  `json:"db_size_bytes"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := s.store.CountWaitlist(ctx)
	if err != nil {
		s.log.Error("health: count waitlist", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	_ = row.Scan(&dbSize)

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		WaitlistCount:   count,
		ActivePageViews: s.registry.Active(),
		DBSizeBytes:     dbSize,
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
	})
}

// BeaconRequest is an engagement observation about one page view.
type BeaconRequest struct {
	PageView       string  `json:"pv"`
	EventType      string  `json:"e"` // scroll, ping or exit
	ScrollY        float64 `json:"y"`
	DocumentHeight float64 `json:"h"`
	ViewportHeight float64 `json:"vh"`
}

func (s *Server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	var req BeaconRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.PageView == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	var err error
	switch req.EventType {
	case "scroll":
		if !finite(req.ScrollY, req.DocumentHeight, req.ViewportHeight) {
			http.Error(w, "Invalid scroll observation", http.StatusBadRequest)
			return
		}
		_, err = s.registry.Scroll(req.PageView, req.ScrollY, req.DocumentHeight, req.ViewportHeight)
	case "ping":
		_, err = s.registry.Ping(req.PageView)
	case "exit":
		err = s.registry.Exit(req.PageView)
	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}

	// A page view that was already reaped or exited is not the client's fault.
	if err != nil && !errors.Is(err, engagement.ErrUnknownPageView) {
		s.log.Warn("beacon failed", zap.String("page_view", req.PageView), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// EventRequest is a discrete interaction reported by the browser.
type EventRequest struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !funnel.IsClientEvent(req.Name) {
		http.Error(w, "Unknown event", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if req.Name == funnel.EventDeviceInfo {
		d := funnel.DetectDevice(r.UserAgent())
		d.ScreenWidth = intProp(req.Properties, "screen_width")
		d.ScreenHeight = intProp(req.Properties, "screen_height")
		d.ViewportWidth = intProp(req.Properties, "viewport_width")
		d.ViewportHeight = intProp(req.Properties, "viewport_height")
		funnel.TrackDevice(ctx, s.emitter, d)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	props := funnel.SanitizeClientProps(req.Name, req.Properties)
	if label, ok := props[telemetry.PropLabel].(string); ok {
		v := visitFrom(ctx)
		for _, key := range funnel.SelectionKeys(req.Name, label) {
			if err := funnel.Remember(v.state, key, label); err != nil {
				s.log.Debug("remember selection failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	s.emitter.Emit(ctx, req.Name, props)
	w.WriteHeader(http.StatusNoContent)
}

// WaitlistResponse mirrors what the thanks page expects.
type WaitlistResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
	Data    *WaitlistData `json:"data,omitempty"`
}

type WaitlistData struct {
	Email    string `json:"email"`
	Style    string `json:"style"`
	Position int64  `json:"position"`
}

func (s *Server) handleWaitlist(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.waitlist.Allow(ip) {
		writeJSON(w, http.StatusTooManyRequests, WaitlistResponse{Error: "Too many requests, try again shortly"})
		return
	}

	var sub funnel.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeJSON(w, http.StatusBadRequest, WaitlistResponse{Error: "Invalid request body"})
		return
	}
	sub = sub.Normalize()
	if err := sub.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, WaitlistResponse{Error: validationMessage(err)})
		return
	}

	ctx := r.Context()
	v := visitFrom(ctx)
	entry := &store.WaitlistEntry{
		Email:      sub.Email,
		Style:      sub.Style,
		Contact:    sub.Contact,
		Arms:       storedArms(v),
		VisitorID:  v.VisitorID,
		UserAgent:  r.UserAgent(),
		RemoteAddr: ip,
		ClientTime: sub.Timestamp,
	}
	position, err := s.store.AddWaitlistEntry(ctx, entry)
	if err != nil {
		s.log.Error("waitlist submission failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, WaitlistResponse{Error: "Internal server error"})
		return
	}

	s.log.Info("waitlist submission",
		zap.String("style", sub.Style),
		zap.Int64("position", position),
		zap.String("visitor_id", v.VisitorID),
	)
	funnel.TrackWaitlist(ctx, s.emitter, sub.Style)

	writeJSON(w, http.StatusOK, WaitlistResponse{
		Success: true,
		Message: "Successfully added to waitlist",
		Data: &WaitlistData{
			Email:    sub.Email,
			Style:    sub.Style,
			Position: position,
		},
	})
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, funnel.ErrInvalidEmail):
		return "Valid email is required"
	case errors.Is(err, funnel.ErrInvalidContact):
		return "Contact must be an @handle or an email address"
	default:
		return "Invalid submission"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return eris.New("trailing data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func intProp(props map[string]any, key string) int {
	f, ok := props[key].(float64)
	if !ok || !finite(f) {
		return 0
	}
	return int(f)
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
