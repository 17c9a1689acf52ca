package usecase

import (
	"context"
	"fmt"
	"log"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/extract"
	"billwatch-backend/internal/statement/repository"
)

// Reconciler marks stored statements as paid when a payment matches them
type Reconciler struct {
	repo repository.SummaryRepository
}

// NewReconciler creates a new reconciler
func NewReconciler(repo repository.SummaryRepository) *Reconciler {
	return &Reconciler{repo: repo}
}

// ReconcilePaid flips every unpaid summary whose amount equals paidAmount
// (compared with two fraction digits) to paid and returns their ids.
// Summaries are matched on amount alone, so several bills with the same
// amount are all marked by one payment.
func (r *Reconciler) ReconcilePaid(ctx context.Context, paidAmount string) ([]uint, error) {
	paid, err := extract.FormatAmount(paidAmount)
	if err != nil {
		return nil, err
	}

	summaries, err := r.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}

	var updated []uint
	for _, s := range summaries {
		if s.PaymentStatus != domain.PaymentStatusUnpaid {
			continue
		}
		amount, err := extract.FormatAmount(s.TotalAmountDue)
		if err != nil {
			log.Printf("[Reconcile] Skipping summary %d: %v", s.ID, err)
			continue
		}
		if amount != paid {
			continue
		}
		if err := r.repo.UpdateStatus(ctx, s.ID, domain.PaymentStatusPaid); err != nil {
			return updated, fmt.Errorf("failed to mark summary %d paid: %w", s.ID, err)
		}
		log.Printf("[Reconcile] Summary %d (%s, due %s) marked paid", s.ID, s.BankName, s.DueDate)
		updated = append(updated, s.ID)
	}

	return updated, nil
}
