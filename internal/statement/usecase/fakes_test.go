package usecase_test

import (
	"context"
	"errors"
	"sync"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/extract"
	"billwatch-backend/internal/statement/repository"
	"billwatch-backend/pkg/ai"
)

type fakeEngine struct {
	name      string
	reply     string
	streamErr error
	// readyAfter is the number of Ready calls that report false
	readyAfter int
	reloadErr  error
	panicMsg   string

	mu          sync.Mutex
	readyCalls  int
	reloadCalls int
	chatCalls   int
	reloaded    bool
}

func (f *fakeEngine) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeEngine) Ready(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyCalls++
	return f.reloaded || f.readyCalls > f.readyAfter
}

func (f *fakeEngine) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloadCalls++
	if f.reloadErr != nil {
		return f.reloadErr
	}
	f.reloaded = true
	return nil
}

func (f *fakeEngine) StreamChat(ctx context.Context, messages []ai.Message, onDelta func(string) error) error {
	f.mu.Lock()
	f.chatCalls++
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.streamErr != nil {
		return f.streamErr
	}
	// deliver the reply in two pieces like a real stream
	half := len(f.reply) / 2
	if err := onDelta(f.reply[:half]); err != nil {
		return err
	}
	return onDelta(f.reply[half:])
}

type fakeRepo struct {
	mu        sync.Mutex
	summaries []domain.StatementSummary
	listErr   error
}

func (r *fakeRepo) InsertIfAbsent(ctx context.Context, rec domain.CanonicalPaymentRecord, sourceEmailID string) (repository.InsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	amount := extract.NormalizeAmount(rec.TotalAmountDue)
	for _, s := range r.summaries {
		if s.TotalAmountDue == amount && s.DueDate == rec.DueDate {
			return repository.InsertResult{Inserted: false, ID: s.ID}, nil
		}
	}
	id := uint(len(r.summaries) + 1)
	r.summaries = append(r.summaries, domain.StatementSummary{
		ID:             id,
		DueDate:        rec.DueDate,
		TotalAmountDue: amount,
		BankName:       rec.BankName,
		CardHolderName: rec.CardHolderName,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		SourceEmailID:  sourceEmailID,
	})
	return repository.InsertResult{Inserted: true, ID: id}, nil
}

func (r *fakeRepo) ListAll(ctx context.Context) ([]domain.StatementSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.StatementSummary, len(r.summaries))
	copy(out, r.summaries)
	return out, nil
}

func (r *fakeRepo) ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]domain.StatementSummary, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.StatementSummary
	for _, s := range all {
		if s.PaymentStatus == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id uint, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.summaries {
		if r.summaries[i].ID == id {
			r.summaries[i].PaymentStatus = status
		}
	}
	return nil
}

func (r *fakeRepo) status(id uint) domain.PaymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.summaries {
		if s.ID == id {
			return s.PaymentStatus
		}
	}
	return ""
}

type notification struct {
	Title   string
	Message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(ctx context.Context, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Title: title, Message: message})
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		out = append(out, s.Title)
	}
	return out
}

type fakeMail struct {
	emails    map[string]domain.RawEmail
	results   map[string][]string
	searchErr error
	queries   []domain.MailQuery
	fetches   int
}

func (m *fakeMail) Search(ctx context.Context, query domain.MailQuery, max int) ([]string, error) {
	m.queries = append(m.queries, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	ids := m.results[query.Phrases[0]]
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (m *fakeMail) Fetch(ctx context.Context, id string) (*domain.RawEmail, error) {
	m.fetches++
	email, ok := m.emails[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &email, nil
}

type staticRegistry bool

func (r staticRegistry) IsForegroundActive() bool { return bool(r) }
