// Package sinks holds the destinations analytics events are forwarded to.
//
// Network sinks never block the request path: Send encodes the event and
// queues it, and a background worker started with Run posts it. When the
// queue is full the event is dropped.
package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrQueueFull is returned by Send when an event had to be dropped.
var ErrQueueFull = eris.New("sinks: queue full, event dropped")

// ErrClosed is returned by Send after Close.
var ErrClosed = eris.New("sinks: sink closed")

// HTTPOptions configures a network sink.
type HTTPOptions struct {
	URL        string
	QueueSize  int
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	UserAgent  string
	Client     *http.Client

	// FlushTimeout bounds delivery of events still queued at Close.
	FlushTimeout time.Duration
}

func (o *HTTPOptions) setDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = 20
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = 10 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "zine-landing/1.0"
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.Timeout}
	}
}

// poster is the queue and worker shared by the HTTP sinks.
type poster struct {
	name    string
	opts    HTTPOptions
	limiter *rate.Limiter
	queue   chan []byte
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newPoster(name string, opts HTTPOptions) *poster {
	opts.setDefaults()
	return &poster{
		name:    name,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		queue:   make(chan []byte, opts.QueueSize),
		log:     zap.L().With(zap.String("sink", name)),
		done:    make(chan struct{}),
	}
}

// enqueue marshals payload and queues it without blocking.
func (p *poster) enqueue(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "sinks: encode %s payload", p.name)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- body:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending is the number of queued events not yet posted.
func (p *poster) Pending() int {
	return len(p.queue)
}

// Run posts queued events until ctx is done or Close is called. Events still
// queued at Close are flushed first, for at most FlushTimeout.
func (p *poster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.done:
			fctx, cancel := context.WithTimeout(ctx, p.opts.FlushTimeout)
			p.flush(fctx)
			cancel()
			return nil
		case body := <-p.queue:
			p.deliver(ctx, body)
		}
	}
}

func (p *poster) flush(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			if n := len(p.queue); n > 0 {
				p.log.Warn("flush timed out, events dropped", zap.Int("dropped", n))
			}
			return
		}
		select {
		case body := <-p.queue:
			p.deliver(ctx, body)
		default:
			return
		}
	}
}

func (p *poster) deliver(ctx context.Context, body []byte) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	if err := p.post(ctx, body); err != nil {
		p.log.Warn("event delivery failed", zap.Error(err))
	}
}

func (p *poster) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.URL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "sinks: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.opts.UserAgent)

	resp, err := p.opts.Client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "sinks: post to %s", p.opts.URL)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return eris.Errorf("sinks: %s responded %d", p.opts.URL, resp.StatusCode)
	}
	return nil
}

// Close stops accepting events and tells Run to flush and return.
func (p *poster) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return nil
}
