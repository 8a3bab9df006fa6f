package batch_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Stevencedor/EasyLoans/internal/batch"
	"github.com/Stevencedor/EasyLoans/internal/domain/loan"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, l)
	if created, ok := args.Get(0).(*loan.Loan); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListLoans(ctx context.Context) ([]loan.LoanWithBorrower, error) {
	args := m.Called(ctx)
	if loans, ok := args.Get(0).([]loan.LoanWithBorrower); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListAllPayments(ctx context.Context) ([]loan.Payment, error) {
	args := m.Called(ctx)
	if payments, ok := args.Get(0).([]loan.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListPaymentsByLoanID(ctx context.Context, loanID int64) ([]loan.Payment, error) {
	args := m.Called(ctx, loanID)
	if payments, ok := args.Get(0).([]loan.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetAllActiveLoanIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, tx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListPaymentsByLoanIDInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Payment, error) {
	args := m.Called(ctx, tx, loanID)
	if payments, ok := args.Get(0).([]loan.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *loan.Payment) (*loan.Payment, error) {
	args := m.Called(ctx, tx, p)
	if inserted, ok := args.Get(0).(*loan.Payment); ok {
		return inserted, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) UpdateLoanStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, status loan.LoanStatus) error {
	args := m.Called(ctx, tx, loanID, status)
	return args.Error(0)
}

func (m *MockLoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, userID int64, amount loan.Money, reason string, interestRate loan.Money, createdAt time.Time) (*loan.Loan, error) {
	args := m.Called(ctx, userID, amount, reason, interestRate, createdAt)
	if created, ok := args.Get(0).(*loan.Loan); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListLoansWithDetails(ctx context.Context) ([]loan.LoanDetail, error) {
	args := m.Called(ctx)
	if details, ok := args.Get(0).([]loan.LoanDetail); ok {
		return details, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListLoansForUser(ctx context.Context, userID int64) ([]loan.LoanDetail, error) {
	args := m.Called(ctx, userID)
	if details, ok := args.Get(0).([]loan.LoanDetail); ok {
		return details, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) AuthorizeLoanAccess(ctx context.Context, loanID, userID int64) error {
	args := m.Called(ctx, loanID, userID)
	return args.Error(0)
}

func (m *MockLoanService) GetLedger(ctx context.Context, loanID int64) (*loan.Snapshot, error) {
	args := m.Called(ctx, loanID)
	if snap, ok := args.Get(0).(*loan.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListPayments(ctx context.Context, loanID int64) ([]loan.Payment, error) {
	args := m.Called(ctx, loanID)
	if payments, ok := args.Get(0).([]loan.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) PreviewPayment(ctx context.Context, loanID int64, amount loan.Money, date time.Time) (*loan.Preview, error) {
	args := m.Called(ctx, loanID, amount, date)
	if preview, ok := args.Get(0).(*loan.Preview); ok {
		return preview, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) CommitPayment(ctx context.Context, loanID int64, amount loan.Money, date time.Time) (*loan.PaymentReceipt, error) {
	args := m.Called(ctx, loanID, amount, date)
	if receipt, ok := args.Get(0).(*loan.PaymentReceipt); ok {
		return receipt, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) SettleIfCovered(ctx context.Context, loanID int64) (bool, error) {
	args := m.Called(ctx, loanID)
	return args.Bool(0), args.Error(1)
}

func newTestJob(t *testing.T) (*batch.PayoffReconcileJob, *MockLoanRepository, *MockLoanService) {
	t.Helper()
	mockRepo := new(MockLoanRepository)
	mockService := new(MockLoanService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	job := batch.NewPayoffReconcileJob(mockRepo, mockService, logger)
	return job, mockRepo, mockService
}

func TestNewPayoffReconcileJob(t *testing.T) {
	t.Run("panics when a dependency is nil", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
		assert.Panics(t, func() {
			batch.NewPayoffReconcileJob(nil, new(MockLoanService), logger)
		})
		assert.Panics(t, func() {
			batch.NewPayoffReconcileJob(new(MockLoanRepository), nil, logger)
		})
		assert.Panics(t, func() {
			batch.NewPayoffReconcileJob(new(MockLoanRepository), new(MockLoanService), nil)
		})
	})
}

func TestPayoffReconcileJobRun(t *testing.T) {
	ctx := context.Background()

	t.Run("settles covered loans and leaves the rest active", func(t *testing.T) {
		job, mockRepo, mockService := newTestJob(t)

		mockRepo.On("GetAllActiveLoanIDs", ctx).Return([]int64{1, 2, 3}, nil)
		mockService.On("SettleIfCovered", ctx, int64(1)).Return(true, nil)
		mockService.On("SettleIfCovered", ctx, int64(2)).Return(false, nil)
		mockService.On("SettleIfCovered", ctx, int64(3)).Return(false, nil)

		err := job.Run(ctx)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockService.AssertExpectations(t)
	})

	t.Run("returns early when no loans are active", func(t *testing.T) {
		job, mockRepo, mockService := newTestJob(t)

		mockRepo.On("GetAllActiveLoanIDs", ctx).Return([]int64{}, nil)

		err := job.Run(ctx)

		assert.NoError(t, err)
		mockService.AssertNotCalled(t, "SettleIfCovered", mock.Anything, mock.Anything)
	})

	t.Run("aborts when the active loan query fails", func(t *testing.T) {
		job, mockRepo, mockService := newTestJob(t)

		queryErr := errors.New("connection refused")
		mockRepo.On("GetAllActiveLoanIDs", ctx).Return([]int64(nil), queryErr)

		err := job.Run(ctx)

		assert.Error(t, err)
		assert.ErrorIs(t, err, queryErr)
		mockService.AssertNotCalled(t, "SettleIfCovered", mock.Anything, mock.Anything)
	})

	t.Run("counts reconcile failures without stopping the sweep", func(t *testing.T) {
		job, mockRepo, mockService := newTestJob(t)

		mockRepo.On("GetAllActiveLoanIDs", ctx).Return([]int64{1, 2}, nil)
		mockService.On("SettleIfCovered", ctx, int64(1)).Return(false, errors.New("deadlock detected"))
		mockService.On("SettleIfCovered", ctx, int64(2)).Return(true, nil)

		err := job.Run(ctx)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "1 errors")
		mockService.AssertExpectations(t)
	})

	t.Run("treats a vanished loan as a warning, not an error", func(t *testing.T) {
		job, mockRepo, mockService := newTestJob(t)

		mockRepo.On("GetAllActiveLoanIDs", ctx).Return([]int64{1}, nil)
		mockService.On("SettleIfCovered", ctx, int64(1)).Return(false, apperrors.ErrNotFound)

		err := job.Run(ctx)

		assert.NoError(t, err)
		mockService.AssertExpectations(t)
	})
}
