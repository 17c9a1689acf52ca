package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/repository"
)

var dueDateLayouts = []string{"02-01-2006", "2006-01-02", "02/01/2006"}

// ParseDueDate parses a stored due date in any of the accepted layouts
func ParseDueDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized due date %q", value)
}

// ReminderSweeper reminds the user about unpaid bills that are due soon
type ReminderSweeper struct {
	repo     repository.SummaryRepository
	notifier Notifier
	window   time.Duration
	loc      *time.Location
	now      func() time.Time
}

// NewReminderSweeper creates a new sweeper. loc is the zone due dates are
// interpreted in; nil means local time.
func NewReminderSweeper(repo repository.SummaryRepository, notifier Notifier, window time.Duration, loc *time.Location) *ReminderSweeper {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderSweeper{
		repo:     repo,
		notifier: notifier,
		window:   window,
		loc:      loc,
		now:      time.Now,
	}
}

// Sweep notifies once per unpaid summary that is overdue or due within the
// window and returns how many reminders were sent
func (s *ReminderSweeper) Sweep(ctx context.Context) (int, error) {
	summaries, err := s.repo.ListByStatus(ctx, domain.PaymentStatusUnpaid)
	if err != nil {
		log.Printf("[Sweep] Failed to load unpaid summaries: %v", err)
		s.notify(ctx, "Error", "Could not load stored bills")
		return 0, err
	}

	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	horizon := today.Add(s.window)

	sent := 0
	for _, summary := range summaries {
		due, err := ParseDueDate(summary.DueDate, s.loc)
		if err != nil {
			log.Printf("[Sweep] Skipping summary %d: %v", summary.ID, err)
			continue
		}
		if due.After(horizon) {
			continue
		}

		var message string
		if due.Before(today) {
			message = fmt.Sprintf("%s bill of %s was due on %s", summary.BankName, summary.TotalAmountDue, summary.DueDate)
		} else {
			message = fmt.Sprintf("%s bill of %s is due on %s", summary.BankName, summary.TotalAmountDue, summary.DueDate)
		}
		s.notify(ctx, "Payment due", message)
		sent++
	}

	log.Printf("[Sweep] %d reminder(s) sent for %d unpaid summaries", sent, len(summaries))
	return sent, nil
}

func (s *ReminderSweeper) notify(ctx context.Context, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, title, message)
}
