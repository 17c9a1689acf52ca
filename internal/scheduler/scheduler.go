package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"billwatch-backend/internal/statement/usecase"

	"github.com/robfig/cron/v3"
)

// Trigger names
const (
	CheckDueEmails      = "checkDueEmails"
	NotificationSweep   = "notificationSweep"
	CheckPaymentSuccess = "checkPaymentSuccess"
	KeepAlive           = "keepAlive"
)

// ErrUnknownTrigger is returned when firing a trigger that was never registered
var ErrUnknownTrigger = errors.New("unknown trigger")

// Job is the work behind a trigger
type Job func(ctx context.Context) error

type trigger struct {
	spec    string
	job     Job
	entryID cron.EntryID
}

// Scheduler runs named jobs on cron specs
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc

	mu       sync.RWMutex
	triggers map[string]*trigger
}

// New creates a scheduler evaluating specs in loc
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cronLogger := cron.PrintfLogger(log.New(os.Stdout, "[Scheduler] ", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx:      ctx,
		stop:     cancel,
		triggers: make(map[string]*trigger),
	}
}

// Register adds a named trigger. Names must be unique.
func (s *Scheduler) Register(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.triggers[name]; exists {
		return fmt.Errorf("trigger %s already registered", name)
	}

	t := &trigger{spec: spec, job: job}
	id, err := s.cron.AddFunc(spec, func() { s.run(s.ctx, name, t.job) })
	if err != nil {
		return fmt.Errorf("unable to schedule %s (%q): %w", name, spec, err)
	}
	t.entryID = id
	s.triggers[name] = t
	log.Printf("[Scheduler] Registered %s with schedule %q", name, spec)
	return nil
}

// Fire runs a trigger's job immediately on the calling goroutine
func (s *Scheduler) Fire(ctx context.Context, name string) error {
	s.mu.RLock()
	t, ok := s.triggers[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrigger, name)
	}
	return s.run(ctx, name, t.job)
}

// Names returns the registered trigger names in order
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.triggers))
	for name := range s.triggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next returns when a trigger fires next. It is zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	t, ok := s.triggers[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(t.entryID).Next
}

// Start begins firing triggers
func (s *Scheduler) Start() {
	log.Printf("[Scheduler] Starting with %d triggers", len(s.Names()))
	s.cron.Start()
}

// Stop stops firing and cancels running jobs, waiting for them to return
func (s *Scheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	started := time.Now()
	err := job(ctx)
	if err != nil {
		log.Printf("[Scheduler] %s failed after %s: %v", name, time.Since(started).Round(time.Millisecond), err)
		return err
	}
	log.Printf("[Scheduler] %s finished in %s", name, time.Since(started).Round(time.Millisecond))
	return nil
}

// Schedules holds the cron spec of each statement trigger
type Schedules struct {
	DueScan     string
	Sweep       string
	SuccessScan string
	KeepAlive   string
}

// Scanner runs the inbox scans and engine pings
type Scanner interface {
	ScanDueEmails(ctx context.Context) (*usecase.RunReport, error)
	ScanSuccessEmails(ctx context.Context) (*usecase.RunReport, error)
	KeepAlive(ctx context.Context) bool
}

// Sweeper sends payment reminders
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RegisterStatementJobs registers the four statement triggers
func RegisterStatementJobs(s *Scheduler, schedules Schedules, scanner Scanner, sweeper Sweeper) error {
	jobs := []struct {
		name string
		spec string
		job  Job
	}{
		{CheckDueEmails, schedules.DueScan, func(ctx context.Context) error {
			return reportScan(scanner.ScanDueEmails(ctx))
		}},
		{NotificationSweep, schedules.Sweep, func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx)
			return err
		}},
		{CheckPaymentSuccess, schedules.SuccessScan, func(ctx context.Context) error {
			return reportScan(scanner.ScanSuccessEmails(ctx))
		}},
		{KeepAlive, schedules.KeepAlive, func(ctx context.Context) error {
			scanner.KeepAlive(ctx)
			return nil
		}},
	}

	for _, j := range jobs {
		if err := s.Register(j.name, j.spec, j.job); err != nil {
			return err
		}
	}
	return nil
}

func reportScan(report *usecase.RunReport, err error) error {
	if err != nil {
		return err
	}
	if report != nil && report.State == usecase.StateFailed {
		return fmt.Errorf("run %s failed in %s: %w", report.ID, report.FailedIn, report.Err)
	}
	return nil
}
