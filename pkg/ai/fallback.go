package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
)

// FallbackService routes completions to a primary engine and falls back to a
// secondary one on connection or quota errors
type FallbackService struct {
	primary   CompletionService
	secondary CompletionService
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary, secondary CompletionService) *FallbackService {
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
	}
}

func (f *FallbackService) Name() string {
	return fmt.Sprintf("fallback(%s,%s)", f.primary.Name(), f.secondary.Name())
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Check for network errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Check for common connection error messages
	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource_exhausted",
		"resource exhausted",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// StreamChat tries the primary engine first. The secondary engine is only
// used when the primary failed before emitting any fragment.
func (f *FallbackService) StreamChat(ctx context.Context, messages []Message, onDelta func(string) error) error {
	emitted := false
	err := f.primary.StreamChat(ctx, messages, func(delta string) error {
		emitted = true
		return onDelta(delta)
	})
	if err == nil {
		return nil
	}
	if emitted {
		return err
	}
	if !isConnectionError(err) && !isQuotaError(err) {
		return err
	}

	log.Printf("[AI] %s failed: %v, falling back to %s", f.primary.Name(), err, f.secondary.Name())
	if err := f.secondary.StreamChat(ctx, messages, onDelta); err != nil {
		return fmt.Errorf("%s fallback failed: %w", f.secondary.Name(), err)
	}
	return nil
}

// Ready reports whether either engine is ready
func (f *FallbackService) Ready(ctx context.Context) bool {
	return f.primary.Ready(ctx) || f.secondary.Ready(ctx)
}

// Reload reloads both engines and succeeds if either one does
func (f *FallbackService) Reload(ctx context.Context) error {
	errPrimary := f.primary.Reload(ctx)
	if errPrimary == nil {
		return nil
	}
	log.Printf("[AI] %s reload failed: %v", f.primary.Name(), errPrimary)
	if err := f.secondary.Reload(ctx); err != nil {
		return errors.Join(errPrimary, err)
	}
	return nil
}
