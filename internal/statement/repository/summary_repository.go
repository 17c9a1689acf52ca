package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/extract"

	"gorm.io/gorm"
)

// InsertResult reports the outcome of InsertIfAbsent
type InsertResult struct {
	Inserted bool
	ID       uint
}

// SummaryRepository defines the interface for statement summary storage
type SummaryRepository interface {
	// InsertIfAbsent stores rec unless a summary with the same normalized
	// amount and due date exists. The check and the insert are separate
	// statements, so concurrent callers may both insert.
	InsertIfAbsent(ctx context.Context, rec domain.CanonicalPaymentRecord, sourceEmailID string) (InsertResult, error)
	// ListAll returns a snapshot of every summary ordered by id
	ListAll(ctx context.Context) ([]domain.StatementSummary, error)
	// ListByStatus returns summaries with the given payment status
	ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]domain.StatementSummary, error)
	// UpdateStatus sets the payment status of one summary. Missing rows are ignored.
	UpdateStatus(ctx context.Context, id uint, status domain.PaymentStatus) error
}

// summaryRepository implements SummaryRepository interface
type summaryRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSummaryRepository creates a new instance of summaryRepository
func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{
		db:  db,
		now: time.Now,
	}
}

// InsertIfAbsent stores a new unpaid summary unless its dedup key is taken
func (r *summaryRepository) InsertIfAbsent(ctx context.Context, rec domain.CanonicalPaymentRecord, sourceEmailID string) (InsertResult, error) {
	amount := extract.NormalizeAmount(rec.TotalAmountDue)
	dueDate := strings.TrimSpace(rec.DueDate)

	var existing domain.StatementSummary
	err := r.db.WithContext(ctx).
		Where("total_amount_due = ? AND due_date = ?", amount, dueDate).
		First(&existing).Error
	if err == nil {
		return InsertResult{Inserted: false, ID: existing.ID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return InsertResult{}, err
	}

	summary := domain.StatementSummary{
		DueDate:          dueDate,
		TotalAmountDue:   amount,
		BankName:         strings.TrimSpace(rec.BankName),
		CardHolderName:   strings.TrimSpace(rec.CardHolderName),
		PaymentStatus:    domain.PaymentStatusUnpaid,
		SummaryTimestamp: r.now().UTC().Format(time.RFC3339),
		SourceEmailID:    sourceEmailID,
	}
	if err := r.db.WithContext(ctx).Create(&summary).Error; err != nil {
		return InsertResult{}, err
	}
	return InsertResult{Inserted: true, ID: summary.ID}, nil
}

// ListAll returns every stored summary
func (r *summaryRepository) ListAll(ctx context.Context) ([]domain.StatementSummary, error) {
	var summaries []domain.StatementSummary
	err := r.db.WithContext(ctx).Order("id ASC").Find(&summaries).Error
	return summaries, err
}

// ListByStatus returns stored summaries with the given status
func (r *summaryRepository) ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]domain.StatementSummary, error) {
	var summaries []domain.StatementSummary
	err := r.db.WithContext(ctx).Where("payment_status = ?", status).Order("id ASC").Find(&summaries).Error
	return summaries, err
}

// UpdateStatus changes the payment status of a summary in place
func (r *summaryRepository) UpdateStatus(ctx context.Context, id uint, status domain.PaymentStatus) error {
	return r.db.WithContext(ctx).Model(&domain.StatementSummary{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}
