package domain

import "time"

// PaymentStatus is the lifecycle state of a stored statement
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// Heuristic summary field names
const (
	FieldTotalAmountDue = "Total Amount Due"
	FieldRewardsEarned  = "Rewards Earned"
	FieldPaymentDueDate = "Payment Due Date"
)

// HeuristicSummary holds fields pulled out of the "summary" section of a
// statement body. Fields that were not found are absent.
type HeuristicSummary map[string]string

// CanonicalPaymentRecord is the record the model is asked to produce for a
// billing statement
type CanonicalPaymentRecord struct {
	DueDate        string `json:"Due Date"`
	TotalAmountDue string `json:"Total Amount Due"`
	BankName       string `json:"Bank Name"`
	CardHolderName string `json:"Card Holder Name,omitempty"`
}

// PaidAmount is the record the model is asked to produce for a payment
// confirmation
type PaidAmount struct {
	TotalAmountDue string `json:"Total Amount Due"`
}

// StatementSummary is a persisted payment-due record.
// (TotalAmountDue, DueDate) is the dedup key.
type StatementSummary struct {
	ID               uint          `json:"id" gorm:"primaryKey;autoIncrement"`
	DueDate          string        `json:"dueDate" gorm:"index:idx_amount_due_date;not null"`
	TotalAmountDue   string        `json:"totalAmountDue" gorm:"index:idx_amount_due_date;not null"`
	BankName         string        `json:"bankName"`
	CardHolderName   string        `json:"cardHolderName,omitempty"`
	PaymentStatus    PaymentStatus `json:"paymentStatus" gorm:"index;not null;default:unpaid"`
	SummaryTimestamp string        `json:"summaryTimestamp"`
	SourceEmailID    string        `json:"sourceEmailId,omitempty"`
}

// TableName specifies the table name for GORM
func (StatementSummary) TableName() string {
	return "statement_summaries"
}

// CreatedAt parses SummaryTimestamp. The zero time is returned when it is
// missing or malformed.
func (s StatementSummary) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339, s.SummaryTimestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
