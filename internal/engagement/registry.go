package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnknownPageView is returned for observations about a page view that was
// never begun or has already been torn down.
var ErrUnknownPageView = eris.New("engagement: unknown page view")

// PageView is the engagement state of one page view. Its dwell loop runs
// only while the browser keeps sending beacons.
type PageView struct {
	ID     string
	Path   string
	Scroll *ScrollTracker
	Dwell  *DwellTracker

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	lastSeen time.Time
	running  bool
}

// touch records a beacon and reports whether the dwell loop needs starting.
func (p *PageView) touch(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = now
	if p.running {
		return false
	}
	p.running = true
	return true
}

// liveAt reports whether a beacon arrived within window of now. When it has
// not, the dwell loop is marked stopped in the same step so the next touch
// restarts it.
func (p *PageView) liveAt(now time.Time, window time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now.Sub(p.lastSeen) <= window {
		return true
	}
	p.running = false
	return false
}

func (p *PageView) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

func (p *PageView) stop() {
	p.cancel()
	p.Dwell.Stop()
	p.Scroll.Stop()
}

// RegistryConfig tunes the registry.
type RegistryConfig struct {
	CheckInterval time.Duration // dwell sampling interval, also the browser's ping interval
	LiveWindow    time.Duration // dwell is only sampled while the last beacon is this recent
	IdleTimeout   time.Duration // page views with no observation for this long are torn down
}

// Registry owns every active page view.
type Registry struct {
	cfg     RegistryConfig
	emitter Emitter
	now     func() time.Time
	log     *zap.Logger

	mu    sync.Mutex
	views map[string]*PageView
	wg    sync.WaitGroup
}

// NewRegistry builds an empty registry.
func NewRegistry(emitter Emitter, cfg RegistryConfig) *Registry {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.LiveWindow <= 0 {
		// One missed ping plus jitter.
		cfg.LiveWindow = 3 * cfg.CheckInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Registry{
		cfg:     cfg,
		emitter: emitter,
		now:     time.Now,
		log:     zap.L(),
		views:   make(map[string]*PageView),
	}
}

// SetClock replaces the registry's time source. Call before Begin.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// CheckInterval is the dwell sampling interval browsers should ping at.
func (r *Registry) CheckInterval() time.Duration {
	return r.cfg.CheckInterval
}

// Begin registers a rendered page view. Dwell time counts from now, but
// nothing is sampled until the first beacon proves a browser is showing the
// page. ctx carries the visitor identity for every event the page view
// emits; its cancellation does not end the page view. If id is already
// active the existing page view is returned.
func (r *Registry) Begin(ctx context.Context, id, path string) *PageView {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pv, ok := r.views[id]; ok {
		return pv
	}

	now := r.now()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pv := &PageView{
		ID:       id,
		Path:     path,
		Scroll:   NewScrollTracker(r.emitter),
		Dwell:    NewDwellTracker(r.emitter, now),
		ctx:      runCtx,
		cancel:   cancel,
		lastSeen: now,
	}
	r.views[id] = pv

	r.log.Debug("page view started", zap.String("page_view", id), zap.String("path", path))
	return pv
}

// Get returns an active page view.
func (r *Registry) Get(id string) (*PageView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pv, ok := r.views[id]
	return pv, ok
}

// observe records a beacon for pv, restarting its dwell loop if it had
// stopped for lack of beacons.
func (r *Registry) observe(pv *PageView, now time.Time) {
	if !pv.touch(now) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A page view torn down meanwhile must not start a loop Close won't wait for.
	if r.views[pv.ID] != pv {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		pv.Dwell.RunWhile(pv.ctx, r.cfg.CheckInterval, r.now, func(t time.Time) bool {
			return pv.liveAt(t, r.cfg.LiveWindow)
		})
	}()
}

// Scroll feeds a scroll observation to a page view.
func (r *Registry) Scroll(id string, offset, documentHeight, viewportHeight float64) ([]string, error) {
	pv, ok := r.Get(id)
	if !ok {
		return nil, ErrUnknownPageView
	}
	r.observe(pv, r.now())
	return pv.Scroll.Observe(pv.ctx, offset, documentHeight, viewportHeight), nil
}

// Ping records liveness without a scroll change and runs a dwell check.
func (r *Registry) Ping(id string) ([]string, error) {
	pv, ok := r.Get(id)
	if !ok {
		return nil, ErrUnknownPageView
	}
	now := r.now()
	r.observe(pv, now)
	return pv.Dwell.Check(pv.ctx, now), nil
}

// Exit reports page unload: page_exit is emitted and the page view is torn
// down.
func (r *Registry) Exit(id string) error {
	r.mu.Lock()
	pv, ok := r.views[id]
	if ok {
		delete(r.views, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownPageView
	}

	now := r.now()
	pv.Dwell.Check(pv.ctx, now)
	pv.Dwell.Exit(pv.ctx, now)
	pv.stop()
	return nil
}

// End tears a page view down without reporting an exit.
func (r *Registry) End(id string) bool {
	r.mu.Lock()
	pv, ok := r.views[id]
	if ok {
		delete(r.views, id)
	}
	r.mu.Unlock()
	if ok {
		pv.stop()
	}
	return ok
}

// Reap tears down page views idle for longer than the idle timeout and
// returns how many were removed.
func (r *Registry) Reap() int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var stale []*PageView
	for id, pv := range r.views {
		if pv.idleSince().Before(cutoff) {
			stale = append(stale, pv)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, pv := range stale {
		pv.stop()
	}
	if len(stale) > 0 {
		r.log.Debug("reaped idle page views", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Reap()
		}
	}
}

// Active is the number of page views being observed.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close tears down every page view and waits for their dwell loops to exit.
func (r *Registry) Close() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*PageView)
	r.mu.Unlock()

	for _, pv := range views {
		pv.stop()
	}
	r.wg.Wait()
}
