package delivery_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/repository"
	"billwatch-backend/internal/statement/usecase"
	"billwatch-backend/pkg/ai"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// heldEngine answers only after release is closed
type heldEngine struct {
	started chan struct{}
	release chan struct{}
	reply   string
}

func (e *heldEngine) Name() string                     { return "held" }
func (e *heldEngine) Ready(ctx context.Context) bool   { return true }
func (e *heldEngine) Reload(ctx context.Context) error { return nil }

func (e *heldEngine) StreamChat(ctx context.Context, messages []ai.Message, onDelta func(string) error) error {
	close(e.started)
	<-e.release
	return onDelta(e.reply)
}

func newRepository(t *testing.T) repository.SummaryRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.StatementSummary{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return repository.NewSummaryRepository(db)
}

func TestEmailDataRunSurvivesClientDisconnect(t *testing.T) {
	engine := &heldEngine{
		started: make(chan struct{}),
		release: make(chan struct{}),
		reply:   `{"Due Date":"05-02-2025","Total Amount Due":"1,234.00","Bank Name":"HDFC Bank"}`,
	}
	repo := newRepository(t)
	pipeline := usecase.NewPipeline(usecase.NewEngineRouter(engine, nil, nil), nil, repo, nil, nil, usecase.PipelineConfig{
		Readiness: usecase.ReadinessPolicy{Attempts: 1},
	})
	r := setupRouter(pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	body := `{"type":"emailData","payload":{"id":"m1","body":"Statement Summary:\nTotal Amount Due\n1,234.00\nPayment Due Date\n05-02-2025"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		done <- w
	}()

	select {
	case <-engine.started:
	case <-time.After(2 * time.Second):
		t.Fatal("completion never started")
	}
	cancel()
	close(engine.release)

	var w *httptest.ResponseRecorder
	select {
	case w = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"state":"done"`)

	stored, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "1234.00", stored[0].TotalAmountDue)
	require.Equal(t, domain.PaymentStatusUnpaid, stored[0].PaymentStatus)
}

func TestScansIgnoreCancelledRequest(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(`{"type":"processEmailInPopup"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []error{nil, nil}, svc.scanCtxErrs)
}
