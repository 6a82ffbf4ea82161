package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/apperr"
	"github.com/crewmate-app/crewmate/internal/metrics"
)

// Failover routes every generation call through one primary provider with
// at most one fallback. The pair is chosen once at construction from which
// credentials are present; there is no retry beyond the single fallback
// attempt. Every call site in the application goes through this type.
type Failover struct {
	primary  Provider
	fallback Provider
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewFailover builds the failover chain. primary must be non-nil unless no
// provider is configured at all, in which case both may be nil and every
// call fails with apperr.ErrNoProvider.
func NewFailover(primary, fallback Provider, logger zerolog.Logger) *Failover {
	return &Failover{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "llm.failover").Logger(),
	}
}

// WithMetrics attaches a metrics sink recording per-provider calls.
func (f *Failover) WithMetrics(m *metrics.Metrics) *Failover {
	f.metrics = m
	return f
}

// Configured reports whether any provider is available.
func (f *Failover) Configured() bool { return f.primary != nil }

// PrimaryName returns the primary provider's name, or "" when unconfigured.
func (f *Failover) PrimaryName() string {
	if f.primary == nil {
		return ""
	}
	return f.primary.Name()
}

// Complete runs the completion against the primary, then the fallback once
// on a primary failure. The fallback's error, when it too fails, is the one
// surfaced, wrapped together with the primary's.
func (f *Failover) Complete(ctx context.Context, userContent, instructions string, opts Options) (string, error) {
	if f.primary == nil {
		return "", apperr.ErrNoProvider
	}

	text, primaryErr := f.call(ctx, f.primary, userContent, instructions, opts)
	if primaryErr == nil {
		return text, nil
	}
	if f.fallback == nil {
		return "", primaryErr
	}

	f.logger.Warn().Err(primaryErr).
		Str("primary", f.primary.Name()).
		Str("fallback", f.fallback.Name()).
		Msg("primary provider failed, trying fallback")

	text, fallbackErr := f.call(ctx, f.fallback, userContent, instructions, opts)
	if fallbackErr == nil {
		return text, nil
	}
	return "", errors.Join(primaryErr, fallbackErr)
}

func (f *Failover) call(ctx context.Context, p Provider, userContent, instructions string, opts Options) (string, error) {
	start := time.Now()
	text, err := p.Complete(ctx, userContent, instructions, opts)
	if f.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		f.metrics.RecordProviderCall(p.Name(), result)
		f.metrics.ObserveProviderCall(p.Name(), time.Since(start).Seconds())
	}
	return text, err
}
