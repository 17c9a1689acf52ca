package delivery_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"billwatch-backend/internal/statement/delivery"
	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	due         []domain.RawEmail
	success     []domain.RawEmail
	scans       int
	scanErr     error
	scanCtxErrs []error
	summaries   []domain.StatementSummary
	listErr     error
}

func (s *stubService) ProcessDueEmail(ctx context.Context, email domain.RawEmail) usecase.RunReport {
	s.due = append(s.due, email)
	return usecase.RunReport{ID: "run-due", Flow: usecase.FlowDue, State: usecase.StateDone, Inserted: true, RecordID: 7}
}

func (s *stubService) ProcessSuccessEmail(ctx context.Context, email domain.RawEmail) usecase.RunReport {
	s.success = append(s.success, email)
	return usecase.RunReport{ID: "run-success", Flow: usecase.FlowSuccess, State: usecase.StateDone, MarkedPaid: []uint{7}}
}

func (s *stubService) ScanDueEmails(ctx context.Context) (*usecase.RunReport, error) {
	s.scans++
	s.scanCtxErrs = append(s.scanCtxErrs, ctx.Err())
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return &usecase.RunReport{ID: "scan-due", State: usecase.StateDone}, nil
}

func (s *stubService) ScanSuccessEmails(ctx context.Context) (*usecase.RunReport, error) {
	s.scans++
	s.scanCtxErrs = append(s.scanCtxErrs, ctx.Err())
	return nil, nil
}

func (s *stubService) ListSummaries(ctx context.Context) ([]domain.StatementSummary, error) {
	return s.summaries, s.listErr
}

func setupRouter(svc delivery.StatementService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := delivery.NewStatementHandler(svc)
	r.POST("/api/messages", h.HandleMessage)
	r.GET("/api/summaries", h.ListSummaries)
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestEmailDataRunsDueFlow(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	w := post(r, `{"type":"emailData","payload":{"subject":"Statement","sender":"bank","body":"Statement Summary: ..."}}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.due, 1)
	require.Equal(t, "Statement", svc.due[0].Subject)

	var resp struct {
		Report usecase.RunReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, usecase.StateDone, resp.Report.State)
	require.Equal(t, uint(7), resp.Report.RecordID)
}

func TestEmailDataRunsSuccessFlow(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	w := post(r, `{"type":"emailData","payload":{"body":"payment received","flow":"success"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, svc.due)
	require.Len(t, svc.success, 1)
}

func TestEmailDataRejectsBadPayload(t *testing.T) {
	r := setupRouter(&stubService{})

	require.Equal(t, http.StatusBadRequest, post(r, `{"type":"emailData"}`).Code)
	require.Equal(t, http.StatusBadRequest, post(r, `{"type":"emailData","payload":{"body":"  "}}`).Code)
	require.Equal(t, http.StatusBadRequest, post(r, `{"type":"emailData","payload":{"body":"x","flow":"refund"}}`).Code)
	require.Equal(t, http.StatusBadRequest, post(r, `{"type":"emailData","payload":"text"}`).Code)
}

func TestProcessEmailInPopupScansBothFlows(t *testing.T) {
	svc := &stubService{scanErr: errors.New("search failed")}
	r := setupRouter(svc)

	w := post(r, `{"type":"processEmailInPopup"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, svc.scans)
	var resp struct {
		Due     delivery.ScanResult `json:"due"`
		Success delivery.ScanResult `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "search failed", resp.Due.Error)
	require.Nil(t, resp.Success.Report)
	require.Empty(t, resp.Success.Error)
}

func TestGetEmailData(t *testing.T) {
	svc := &stubService{summaries: []domain.StatementSummary{{ID: 1, BankName: "HDFC", PaymentStatus: domain.PaymentStatusUnpaid}}}
	r := setupRouter(svc)

	w := post(r, `{"type":"getEmailData"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Summaries []domain.StatementSummary `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Summaries, 1)
	require.Equal(t, "HDFC", resp.Summaries[0].BankName)
}

func TestListSummariesFailure(t *testing.T) {
	r := setupRouter(&stubService{listErr: errors.New("db down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summaries", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListSummariesEmpty(t *testing.T) {
	r := setupRouter(&stubService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summaries", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"summaries":[]}`, w.Body.String())
}

func TestUnknownMessageType(t *testing.T) {
	r := setupRouter(&stubService{})

	w := post(r, `{"type":"openPopup"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unknown message type")

	require.Equal(t, http.StatusBadRequest, post(r, `{}`).Code)
}
