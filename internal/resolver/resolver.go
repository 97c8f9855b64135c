package resolver

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"ipmonitor/internal/source"
	"ipmonitor/internal/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Recorder receives per-source request outcomes
type Recorder interface {
	RecordSourceRequest(name string, duration time.Duration, err error)
}

// ExhaustedError is returned when every source failed
type ExhaustedError struct {
	Attempts []types.SourceAttempt
}

// Error implements error
func (e *ExhaustedError) Error() string {
	parts := lo.Map(e.Attempts, func(a types.SourceAttempt, _ int) string {
		return fmt.Sprintf("%s: %v", a.Source, a.Err)
	})
	return fmt.Sprintf("all %d ip sources failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes every per-source failure
func (e *ExhaustedError) Unwrap() []error {
	return lo.FilterMap(e.Attempts, func(a types.SourceAttempt, _ int) (error, bool) {
		return a.Err, a.Err != nil
	})
}

// Resolver tries sources in order until one succeeds
type Resolver struct {
	sources  []source.Source
	logger   *zap.Logger
	recorder Recorder
}

// New creates a resolver. Order of sources is failover precedence.
func New(sources []source.Source, recorder Recorder, logger *zap.Logger) (*Resolver, error) {
	if len(sources) == 0 {
		return nil, types.ErrNoSources
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		sources:  sources,
		logger:   logger.Named("resolver"),
		recorder: recorder,
	}, nil
}

// Sources returns the source names in failover order
func (r *Resolver) Sources() []string {
	return lo.Map(r.sources, func(s source.Source, _ int) string { return s.Name() })
}

// Resolve returns the first successful source's address. Remaining sources
// are not invoked once one succeeds.
func (r *Resolver) Resolve(ctx context.Context) (netip.Addr, error) {
	attempts := make([]types.SourceAttempt, 0, len(r.sources))

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, types.SourceAttempt{Source: src.Name(), Err: err})
			break
		}

		start := time.Now()
		addr, err := src.Fetch(ctx)
		duration := time.Since(start)

		if r.recorder != nil {
			r.recorder.RecordSourceRequest(src.Name(), duration, err)
		}

		if err == nil {
			r.logger.Debug("Resolved public IP",
				zap.String("source", src.Name()),
				zap.String("ip", addr.String()),
				zap.Duration("duration", duration))
			return addr, nil
		}

		r.logger.Warn("IP source failed",
			zap.String("source", src.Name()),
			zap.String("kind", source.KindName(err)),
			zap.Duration("duration", duration),
			zap.Error(err))
		attempts = append(attempts, types.SourceAttempt{Source: src.Name(), Err: err, Duration: duration})
	}

	return netip.Addr{}, &ExhaustedError{Attempts: attempts}
}
