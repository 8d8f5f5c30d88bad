// Package app wires the registry, the CPU sampler and the HTTP server.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arjfabian/hostpulse/internal/config"
	"github.com/arjfabian/hostpulse/internal/metrics"
	"github.com/arjfabian/hostpulse/internal/sampler"
	"github.com/arjfabian/hostpulse/internal/server"
)

// Run binds the listener, then runs the sampler and the HTTP server until
// ctx is cancelled or one of them fails. Bind errors are returned before
// the sampler starts.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...sampler.Option) error {
	reg := metrics.NewRegistry()
	if err := reg.RegisterGauge(metrics.CPUUsage, "CPU usage percentage"); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	router, err := server.NewRouter(reg, reg.Prometheus(), log.Named("http"))
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	ln, err := server.Listen(cfg.HTTPHost, cfg.HTTPPort)
	if err != nil {
		return err
	}

	srv := server.New(router, log.Named("http"))
	smp := sampler.New(reg, log, opts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return smp.Run(ctx) })
	g.Go(func() error { return srv.Serve(ctx, ln) })
	return g.Wait()
}
