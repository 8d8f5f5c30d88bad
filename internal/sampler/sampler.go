// Package sampler periodically measures host CPU utilization and publishes
// it to the metrics registry.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"go.uber.org/zap"

	"github.com/arjfabian/hostpulse/internal/metrics"
)

// DefaultInterval is the time between two CPU samples.
const DefaultInterval = 5 * time.Second

// SampleError is a failed read of the host CPU counters. It is transient:
// the loop logs it and tries again on the next tick.
type SampleError struct {
	Err error
}

func (e *SampleError) Error() string { return "sampling cpu usage: " + e.Err.Error() }
func (e *SampleError) Unwrap() error { return e.Err }

// Setter is the part of the registry the sampler writes to.
type Setter interface {
	Set(name string, value float64) error
}

// ReadFunc returns system-wide CPU utilization, in percent, since the
// previous call.
type ReadFunc func(ctx context.Context) (float64, error)

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval sets the time between samples. Non-positive values keep
// DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithReader replaces the gopsutil reader.
func WithReader(read ReadFunc) Option {
	return func(s *Sampler) { s.read = read }
}

// Sampler publishes CPU usage to metrics.CPUUsage on a fixed interval.
type Sampler struct {
	reg      Setter
	log      *zap.Logger
	interval time.Duration
	read     ReadFunc
}

// New returns a Sampler writing to reg every DefaultInterval.
func New(reg Setter, log *zap.Logger, opts ...Option) *Sampler {
	s := &Sampler{
		reg:      reg,
		log:      log.Named("sampler"),
		interval: DefaultInterval,
		read:     readCPUPercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples once immediately and then on every tick until ctx is done.
// Read failures never stop the loop.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("CPU sampler started", zap.Duration("interval", s.interval))
	for {
		if _, err := s.Sample(ctx); err != nil {
			var se *SampleError
			if !errors.As(err, &se) {
				return err
			}
			s.log.Warn("CPU sample failed, keeping previous value", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.log.Info("CPU sampler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sample reads CPU utilization once and writes it to metrics.CPUUsage.
// A registry error is returned as is; a read error is a *SampleError.
func (s *Sampler) Sample(ctx context.Context) (float64, error) {
	usage, err := s.read(ctx)
	if err != nil {
		return 0, &SampleError{Err: err}
	}
	if err := s.reg.Set(metrics.CPUUsage, usage); err != nil {
		return 0, err
	}
	s.log.Info("CPU usage", zap.String("usage", fmt.Sprintf("%.2f%%", usage)))
	return usage, nil
}

// readCPUPercent uses a zero interval, so gopsutil compares the cumulative
// counters with the ones it stored on the previous call.
func readCPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, errors.New("no aggregate cpu reading")
	}
	return percents[0], nil
}
