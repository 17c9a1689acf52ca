package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/extract"
	"billwatch-backend/internal/statement/parser"
	"billwatch-backend/internal/statement/prompt"
	"billwatch-backend/internal/statement/repository"
	"billwatch-backend/pkg/ai"

	"github.com/google/uuid"
)

// RunState is a step of a pipeline run
type RunState string

const (
	StateIdle           RunState = "idle"
	StateAwaitingEngine RunState = "awaiting_engine"
	StateExtracting     RunState = "extracting"
	StatePrompting      RunState = "prompting"
	StateCompleting     RunState = "completing"
	StateParsing        RunState = "parsing"
	StateReconciling    RunState = "reconciling"
	StateDone           RunState = "done"
	StateFailed         RunState = "failed"
)

// Flow names the kind of email a run processes
type Flow string

const (
	FlowDue     Flow = "due"
	FlowSuccess Flow = "success"
)

// RunReport describes how a pipeline run ended
type RunReport struct {
	ID         string   `json:"id"`
	Flow       Flow     `json:"flow"`
	EmailID    string   `json:"email_id,omitempty"`
	State      RunState `json:"state"`
	FailedIn   RunState `json:"failed_in,omitempty"`
	Inserted   bool     `json:"inserted"`
	RecordID   uint     `json:"record_id,omitempty"`
	MarkedPaid []uint   `json:"marked_paid,omitempty"`
	Err        error    `json:"-"`
	Error      string   `json:"error,omitempty"`
}

func (r *RunReport) transition(state RunState) {
	log.Printf("[Pipeline] run %s (%s): %s -> %s", r.ID, r.Flow, r.State, state)
	r.State = state
}

func (r *RunReport) fail(err error) {
	log.Printf("[Pipeline] run %s (%s) failed in %s: %v", r.ID, r.Flow, r.State, err)
	r.FailedIn = r.State
	r.State = StateFailed
	r.Err = err
	r.Error = err.Error()
}

// PipelineConfig configures scans and the engine wait
type PipelineConfig struct {
	DueKeywords     []string
	SuccessKeywords []string
	// ScanWindow limits scans to recent mail; zero scans everything
	ScanWindow time.Duration
	Readiness  ReadinessPolicy
}

// Pipeline runs the statement and payment-confirmation flows
type Pipeline struct {
	router     *EngineRouter
	parser     *parser.Parser
	repo       repository.SummaryRepository
	reconciler *Reconciler
	mail       MailSource
	notifier   Notifier
	cfg        PipelineConfig
	now        func() time.Time

	mu        sync.Mutex
	processed map[string]struct{}
}

// NewPipeline creates a new pipeline. mail may be nil when only pushed
// emails are processed.
func NewPipeline(
	router *EngineRouter,
	p *parser.Parser,
	repo repository.SummaryRepository,
	mail MailSource,
	notifier Notifier,
	cfg PipelineConfig,
) *Pipeline {
	if p == nil {
		p = parser.NewParser()
	}
	if cfg.Readiness.Attempts <= 0 {
		cfg.Readiness = DefaultReadinessPolicy
	}
	return &Pipeline{
		router:     router,
		parser:     p,
		repo:       repo,
		reconciler: NewReconciler(repo),
		mail:       mail,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
		processed:  make(map[string]struct{}),
	}
}

// ProcessDueEmail extracts a payment-due record from a statement email,
// stores it unless it is a duplicate, and notifies about new records
func (p *Pipeline) ProcessDueEmail(ctx context.Context, email domain.RawEmail) RunReport {
	return p.execute(ctx, FlowDue, email, func(r *RunReport) error {
		engine, err := p.awaitEngine(ctx, r)
		if err != nil {
			return err
		}

		r.transition(StateExtracting)
		summary := extract.Summary(email.Body)
		if len(summary) == 0 {
			log.Printf("[Pipeline] WARN run %s: no summary section found, relying on raw text", r.ID)
		}

		r.transition(StatePrompting)
		messages := prompt.BuildDue(prompt.PrepareEmailText(email.Body), summary)

		r.transition(StateCompleting)
		reply, err := ai.Consume(ctx, engine, ai.NewConversation(), messages)
		if err != nil {
			return err
		}

		r.transition(StateParsing)
		rec, err := p.parser.ParseRecord(reply)
		if err != nil {
			return err
		}

		r.transition(StateReconciling)
		res, err := p.repo.InsertIfAbsent(ctx, *rec, email.ID)
		if err != nil {
			return fmt.Errorf("failed to store summary: %w", err)
		}
		r.Inserted = res.Inserted
		r.RecordID = res.ID
		if !res.Inserted {
			log.Printf("[Pipeline] run %s: summary already stored as %d", r.ID, res.ID)
			return nil
		}

		p.notify(ctx, "New bill due", fmt.Sprintf("%s: %s due on %s",
			rec.BankName, extract.NormalizeAmount(rec.TotalAmountDue), rec.DueDate))
		return nil
	})
}

// ProcessSuccessEmail reads the paid amount from a payment confirmation and
// marks matching stored statements as paid
func (p *Pipeline) ProcessSuccessEmail(ctx context.Context, email domain.RawEmail) RunReport {
	return p.execute(ctx, FlowSuccess, email, func(r *RunReport) error {
		engine, err := p.awaitEngine(ctx, r)
		if err != nil {
			return err
		}

		r.transition(StatePrompting)
		messages := prompt.BuildSuccess(prompt.PrepareEmailText(email.Body))

		r.transition(StateCompleting)
		reply, err := ai.Consume(ctx, engine, ai.NewConversation(), messages)
		if err != nil {
			return err
		}

		r.transition(StateParsing)
		paid, err := p.parser.ParsePaidAmount(reply)
		if err != nil {
			return err
		}

		r.transition(StateReconciling)
		updated, err := p.reconciler.ReconcilePaid(ctx, paid.TotalAmountDue)
		r.MarkedPaid = updated
		if err != nil {
			return err
		}
		if len(updated) == 0 {
			log.Printf("[Pipeline] run %s: no unpaid summary matches %s", r.ID, paid.TotalAmountDue)
			return nil
		}

		p.notify(ctx, "Payment recorded", fmt.Sprintf("Payment of %s marked %d bill(s) as paid",
			paid.TotalAmountDue, len(updated)))
		return nil
	})
}

// ScanDueEmails fetches the newest statement email and processes it.
// A nil report means no candidate email was found.
func (p *Pipeline) ScanDueEmails(ctx context.Context) (*RunReport, error) {
	return p.scan(ctx, FlowDue, p.cfg.DueKeywords, p.ProcessDueEmail)
}

// ScanSuccessEmails fetches the newest payment confirmation and processes it
func (p *Pipeline) ScanSuccessEmails(ctx context.Context) (*RunReport, error) {
	return p.scan(ctx, FlowSuccess, p.cfg.SuccessKeywords, p.ProcessSuccessEmail)
}

// ListSummaries returns every stored statement. A store failure raises an
// "Error" notification.
func (p *Pipeline) ListSummaries(ctx context.Context) ([]domain.StatementSummary, error) {
	summaries, err := p.repo.ListAll(ctx)
	if err != nil {
		log.Printf("[Pipeline] Failed to load summaries: %v", err)
		p.notify(ctx, "Error", "Could not load stored bills")
		return nil, err
	}
	return summaries, nil
}

// KeepAlive pings the current engine so a local model stays loaded
func (p *Pipeline) KeepAlive(ctx context.Context) bool {
	engine := p.router.Select()
	if engine == nil {
		return false
	}
	ready := engine.Ready(ctx)
	log.Printf("[Pipeline] keep-alive: %s ready=%v", engine.Name(), ready)
	return ready
}

func (p *Pipeline) scan(ctx context.Context, flow Flow, phrases []string, process func(context.Context, domain.RawEmail) RunReport) (*RunReport, error) {
	if p.mail == nil {
		return nil, errors.New("no mail source configured")
	}

	query := domain.MailQuery{Phrases: phrases}
	if p.cfg.ScanWindow > 0 {
		query.Since = p.now().Add(-p.cfg.ScanWindow)
	}

	ids, err := p.mail.Search(ctx, query, 1)
	if err != nil {
		return nil, fmt.Errorf("mail search failed: %w", err)
	}
	if len(ids) == 0 {
		log.Printf("[Pipeline] %s scan: no matching email", flow)
		return nil, nil
	}

	key := string(flow) + ":" + ids[0]
	if p.wasProcessed(key) {
		log.Printf("[Pipeline] %s scan: email %s already processed", flow, ids[0])
		return nil, nil
	}

	email, err := p.mail.Fetch(ctx, ids[0])
	if err != nil {
		return nil, fmt.Errorf("failed to fetch email %s: %w", ids[0], err)
	}

	report := process(ctx, *email)
	if report.State == StateDone {
		p.markProcessed(key)
	}
	return &report, nil
}

func (p *Pipeline) execute(ctx context.Context, flow Flow, email domain.RawEmail, steps func(r *RunReport) error) (report RunReport) {
	report = RunReport{
		ID:      uuid.New().String(),
		Flow:    flow,
		EmailID: email.ID,
		State:   StateIdle,
	}
	log.Printf("[Pipeline] run %s (%s) started for email %q", report.ID, flow, email.Subject)

	defer func() {
		if rec := recover(); rec != nil {
			report.fail(fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := steps(&report); err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			log.Printf("[Pipeline] run %s: model output was %q", report.ID, perr.Output)
		}
		report.fail(err)
		return report
	}

	report.transition(StateDone)
	return report
}

func (p *Pipeline) awaitEngine(ctx context.Context, r *RunReport) (ai.CompletionService, error) {
	r.transition(StateAwaitingEngine)
	engine := p.router.Select()
	if err := WaitForEngine(ctx, engine, p.cfg.Readiness); err != nil {
		return nil, err
	}
	return engine, nil
}

func (p *Pipeline) notify(ctx context.Context, title, message string) {
	if p.notifier == nil {
		return
	}
	p.notifier.Notify(ctx, title, message)
}

func (p *Pipeline) wasProcessed(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.processed[key]
	return ok
}

func (p *Pipeline) markProcessed(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed[key] = struct{}{}
}
