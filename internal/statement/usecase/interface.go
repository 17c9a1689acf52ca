package usecase

import (
	"context"

	"billwatch-backend/internal/statement/domain"
)

// MailSource finds and fetches inbox messages
type MailSource interface {
	// Search returns up to max message ids matching the query, newest first
	Search(ctx context.Context, query domain.MailQuery, max int) ([]string, error)
	// Fetch returns the decoded message
	Fetch(ctx context.Context, id string) (*domain.RawEmail, error)
}

// Notifier shows a user-facing notification. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// ForegroundRegistry reports whether a foreground client is connected
type ForegroundRegistry interface {
	IsForegroundActive() bool
}
