package usecase_test

import (
	"context"
	"fmt"
	"testing"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/repository"
	"billwatch-backend/internal/statement/usecase"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteRepository(t *testing.T) repository.SummaryRepository {
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

func TestReconcilePaidMatchesNumerically(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	matching, err := repo.InsertIfAbsent(ctx, domain.CanonicalPaymentRecord{DueDate: "05-02-2025", TotalAmountDue: "1,234.00", BankName: "HDFC"}, "")
	require.NoError(t, err)
	other, err := repo.InsertIfAbsent(ctx, domain.CanonicalPaymentRecord{DueDate: "05-02-2025", TotalAmountDue: "1234.01", BankName: "ICICI"}, "")
	require.NoError(t, err)

	updated, err := usecase.NewReconciler(repo).ReconcilePaid(ctx, "1234")
	require.NoError(t, err)
	require.Equal(t, []uint{matching.ID}, updated)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	status := map[uint]domain.PaymentStatus{}
	for _, s := range all {
		status[s.ID] = s.PaymentStatus
	}
	require.Equal(t, domain.PaymentStatusPaid, status[matching.ID])
	require.Equal(t, domain.PaymentStatusUnpaid, status[other.ID])
}

func TestReconcilePaidMarksEverySameAmount(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	for _, due := range []string{"05-01-2025", "05-02-2025"} {
		_, err := repo.InsertIfAbsent(ctx, domain.CanonicalPaymentRecord{DueDate: due, TotalAmountDue: "500", BankName: "SBI"}, "")
		require.NoError(t, err)
	}

	updated, err := usecase.NewReconciler(repo).ReconcilePaid(ctx, "500.00")
	require.NoError(t, err)
	require.Len(t, updated, 2)

	again, err := usecase.NewReconciler(repo).ReconcilePaid(ctx, "500.00")
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestReconcilePaidSkipsUnparseableStoredAmounts(t *testing.T) {
	repo := &fakeRepo{summaries: []domain.StatementSummary{
		{ID: 1, TotalAmountDue: "see statement", PaymentStatus: domain.PaymentStatusUnpaid},
		{ID: 2, TotalAmountDue: "₹750", PaymentStatus: domain.PaymentStatusUnpaid},
	}}

	updated, err := usecase.NewReconciler(repo).ReconcilePaid(context.Background(), "750")

	require.NoError(t, err)
	require.Equal(t, []uint{2}, updated)
}

func TestReconcilePaidRejectsBadPaidAmount(t *testing.T) {
	_, err := usecase.NewReconciler(&fakeRepo{}).ReconcilePaid(context.Background(), "twelve")
	require.Error(t, err)
}
