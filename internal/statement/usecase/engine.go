package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"billwatch-backend/pkg/ai"
)

// ErrEngineUnavailable is returned when the completion engine never became ready
var ErrEngineUnavailable = errors.New("completion engine unavailable")

// EngineRouter picks the engine for a run: the connected foreground client
// when there is one, the background engine otherwise
type EngineRouter struct {
	background ai.CompletionService
	foreground ai.CompletionService
	registry   ForegroundRegistry
}

// NewEngineRouter creates a router. foreground and registry may be nil.
func NewEngineRouter(background, foreground ai.CompletionService, registry ForegroundRegistry) *EngineRouter {
	return &EngineRouter{
		background: background,
		foreground: foreground,
		registry:   registry,
	}
}

// Select returns the engine to use right now
func (r *EngineRouter) Select() ai.CompletionService {
	if r.foreground != nil && r.registry != nil && r.registry.IsForegroundActive() {
		return r.foreground
	}
	return r.background
}

// ReadinessPolicy bounds the wait for an engine
type ReadinessPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultReadinessPolicy polls 10 times, one second apart
var DefaultReadinessPolicy = ReadinessPolicy{Attempts: 10, Interval: time.Second}

// WaitForEngine polls engine.Ready up to policy.Attempts times. When the
// engine is still not ready it is reloaded once; the wait fails with
// ErrEngineUnavailable if the reload fails or leaves the engine unready.
func WaitForEngine(ctx context.Context, engine ai.CompletionService, policy ReadinessPolicy) error {
	if engine == nil {
		return fmt.Errorf("%w: no engine configured", ErrEngineUnavailable)
	}
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = DefaultReadinessPolicy.Attempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if engine.Ready(ctx) {
			return nil
		}
		log.Printf("[Engine] %s not ready (attempt %d/%d)", engine.Name(), attempt, attempts)
		if attempt == attempts {
			break
		}
		if err := sleepContext(ctx, policy.Interval); err != nil {
			return err
		}
	}

	log.Printf("[Engine] Reloading %s", engine.Name())
	if err := engine.Reload(ctx); err != nil {
		return fmt.Errorf("%w: reload %s: %v", ErrEngineUnavailable, engine.Name(), err)
	}
	if !engine.Ready(ctx) {
		return fmt.Errorf("%w: %s not ready after reload", ErrEngineUnavailable, engine.Name())
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
