package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zine-studio/zine-landing/internal/config"
	"github.com/zine-studio/zine-landing/internal/engagement"
	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/server"
	"github.com/zine-studio/zine-landing/internal/store"
	"github.com/zine-studio/zine-landing/internal/telemetry"
	"github.com/zine-studio/zine-landing/internal/telemetry/sinks"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the zine-landing HTTP server.

The server provides:
  - The funnel pages (/, /start, /themes, /audience, /thanks)
  - Tracker script at /zl.js and engagement beacons at /b
  - Event and waitlist APIs
  - Health check endpoint

Example:
  zine-landing serve --port 8080
  VARIANT=zen PRICE=40 zine-landing serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

// worker is a sink with a background delivery loop.
type worker interface {
	telemetry.Sink
	Run(ctx context.Context) error
	Close() error
}

func runServe(cmd *cobra.Command, args []string) error {
	if port != 0 {
		cfg.Server.Port = port
	}
	log := zap.L().Named("serve")

	overrides, err := experiment.LoadOverrides()
	if err != nil {
		return eris.Wrap(err, "failed to read experiment overrides")
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return eris.Wrap(err, "failed to open database")
	}
	defer s.Close()

	sinkList, workers := buildSinks(cfg.Telemetry, cfg.Server.ShutdownTimeout, s)
	emitter := telemetry.NewEmitter(sinkList, telemetry.WithDiagnostics(cfg.App.Development()))
	registry := engagement.NewRegistry(emitter, engagement.RegistryConfig{
		CheckInterval: cfg.Engagement.CheckInterval,
		IdleTimeout:   cfg.Engagement.IdleTimeout,
	})
	defer registry.Close()

	srv := server.New(s, emitter, registry, server.Options{
		SecureCookies:   cfg.Server.SecureCookies,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		TrustProxy:      cfg.Server.TrustProxy,
		Overrides:       overrides,
		WaitlistRate:    rate.Limit(cfg.Waitlist.RatePerMinute / 60),
		WaitlistBurst:   cfg.Waitlist.Burst,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting zine-landing",
		zap.String("addr", server.Addr(cfg.Server.Host, cfg.Server.Port)),
		zap.Strings("sinks", emitter.Sinks()),
		zap.String("variant_override", overrides.Variant),
		zap.String("price_override", overrides.Price),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, server.Addr(cfg.Server.Host, cfg.Server.Port))
	})
	g.Go(func() error {
		return registry.RunReaper(gctx, cfg.Engagement.ReapInterval)
	})
	g.Go(func() error {
		return purgeExpired(gctx, s, cfg.Engagement.ReapInterval)
	})
	for _, w := range workers {
		g.Go(func() error { return w.Run(context.WithoutCancel(gctx)) })
		g.Go(func() error {
			<-gctx.Done()
			// Page views still open are not exits; stop them before the
			// queues flush.
			registry.Close()
			return w.Close()
		})
	}

	return g.Wait()
}

// buildSinks registers the configured sinks. HTTP sinks are also returned
// as workers so their delivery loops can be run and drained.
func buildSinks(tc config.TelemetryConfig, flushTimeout time.Duration, s *store.SQLiteStore) ([]telemetry.Sink, []worker) {
	var (
		list    []telemetry.Sink
		workers []worker
	)
	httpOpts := func(url string) sinks.HTTPOptions {
		return sinks.HTTPOptions{
			URL:          url,
			QueueSize:    tc.QueueSize,
			RatePerSec:   tc.RatePerSec,
			FlushTimeout: flushTimeout,
		}
	}
	if tc.TrackURL != "" {
		c := sinks.NewCollector(httpOpts(tc.TrackURL))
		list = append(list, c)
		workers = append(workers, c)
	}
	if tc.TagURL != "" {
		t := sinks.NewTagManager(httpOpts(tc.TagURL))
		list = append(list, t)
		workers = append(workers, t)
	}
	if tc.Record {
		list = append(list, sinks.NewRecorder(s))
	}
	return list, workers
}

// purgeExpired drops expired visitor and session state every interval.
func purgeExpired(ctx context.Context, s *store.SQLiteStore, interval time.Duration) error {
	log := zap.L().Named("purge")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := s.PurgeExpired(ctx, now)
			if err != nil {
				log.Warn("purge expired state failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired state", zap.Int64("rows", n))
			}
		}
	}
}
