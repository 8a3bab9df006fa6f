package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Stevencedor/EasyLoans/internal/domain/user"
	"github.com/Stevencedor/EasyLoans/internal/event"
	"github.com/Stevencedor/EasyLoans/internal/infrastructure/monitoring"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

// PaymentReceipt is the outcome of a committed payment.
type PaymentReceipt struct {
	Payment Payment
	PaidOff bool
}

type LoanService interface {
	CreateLoan(ctx context.Context, userID int64, amount Money, reason string, interestRate Money, createdAt time.Time) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	// ListLoansWithDetails returns every loan with its borrower fields and a
	// freshly computed ledger snapshot, ordered by loan id.
	ListLoansWithDetails(ctx context.Context) ([]LoanDetail, error)

	// ListLoansForUser returns the loans the given user may view: those they
	// borrowed and those where they are the borrower's co-debtor.
	ListLoansForUser(ctx context.Context, userID int64) ([]LoanDetail, error)

	// AuthorizeLoanAccess returns nil when the user may view the loan,
	// either as its borrower or as the borrower's co-debtor, and
	// ErrForbidden otherwise.
	AuthorizeLoanAccess(ctx context.Context, loanID, userID int64) error

	GetLedger(ctx context.Context, loanID int64) (*Snapshot, error)

	ListPayments(ctx context.Context, loanID int64) ([]Payment, error)

	// PreviewPayment computes the would-be loan state for a hypothetical
	// payment without mutating anything.
	PreviewPayment(ctx context.Context, loanID int64, amount Money, date time.Time) (*Preview, error)

	// CommitPayment records a payment and, when it settles the loan, moves
	// the loan to paid within the same transaction.
	CommitPayment(ctx context.Context, loanID int64, amount Money, date time.Time) (*PaymentReceipt, error)

	// SettleIfCovered marks an active loan paid when its recorded payments
	// already cover the accrued total. Used by the reconciliation job.
	SettleIfCovered(ctx context.Context, loanID int64) (bool, error)
}

var _ LoanService = (*loanServiceImpl)(nil)

type loanServiceImpl struct {
	repo        Repository
	userService user.UserService
	publisher   event.EventPublisher
	logger      *slog.Logger
}

func NewLoanService(r Repository, us user.UserService, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NoopPublisher{}
	}
	return &loanServiceImpl{repo: r, userService: us, publisher: pub, logger: logger.With("component", "LoanService")}
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, userID int64, amount Money, reason string, interestRate Money, createdAt time.Time) (*Loan, error) {
	s.logger.Info("Creating new loan", "userID", userID)

	if _, err := s.userService.GetUser(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Borrower not found", "userID", userID)
			return nil, fmt.Errorf("%w: borrower %d not found", apperrors.ErrValidation, userID)
		}
		s.logger.Error("Failed to verify borrower", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify borrower: %w", err)
	}

	l, err := NewLoan(userID, amount, reason, interestRate, createdAt)
	if err != nil {
		s.logger.Error("Failed to create loan object", "error", err)
		return nil, err
	}

	created, err := s.repo.CreateLoan(ctx, l)
	if err != nil {
		s.logger.Error("Failed to save loan", "error", err)
		return nil, fmt.Errorf("%w: failed to save loan: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordLoanCreated()
	s.logger.Info("Loan created successfully", "loanID", created.ID, "userID", userID)
	return created, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to get loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) ListLoansWithDetails(ctx context.Context) ([]LoanDetail, error) {
	s.logger.Info("Listing loans with computed ledgers")

	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		s.logger.Error("Failed to list loans", "error", err)
		return nil, fmt.Errorf("%w: failed to list loans: %v", apperrors.ErrInternalServer, err)
	}

	payments, err := s.repo.ListAllPayments(ctx)
	if err != nil {
		s.logger.Error("Failed to list payments", "error", err)
		return nil, fmt.Errorf("%w: failed to list payments: %v", apperrors.ErrInternalServer, err)
	}

	paymentsByLoan := make(map[int64][]Payment, len(loans))
	for _, p := range payments {
		paymentsByLoan[p.LoanID] = append(paymentsByLoan[p.LoanID], p)
	}

	now := time.Now()
	details := make([]LoanDetail, 0, len(loans))
	for i := range loans {
		lb := loans[i]
		snap, err := ComputeSnapshot(&lb.Loan, paymentsByLoan[lb.ID], now)
		if err != nil {
			s.logger.Error("Failed to compute ledger snapshot", "loanID", lb.ID, "error", err)
			return nil, err
		}
		details = append(details, LoanDetail{LoanWithBorrower: lb, Ledger: *snap})
	}

	return details, nil
}

func (s *loanServiceImpl) ListLoansForUser(ctx context.Context, userID int64) ([]LoanDetail, error) {
	all, err := s.ListLoansWithDetails(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]LoanDetail, 0, len(all))
	for _, d := range all {
		if d.BelongsTo(userID) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

func (s *loanServiceImpl) AuthorizeLoanAccess(ctx context.Context, loanID, userID int64) error {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}

	borrower, err := s.userService.GetUser(ctx, l.UserID)
	if err != nil {
		s.logger.Error("Failed to load borrower for access check", "loanID", loanID, "error", err)
		return fmt.Errorf("%w: failed to verify loan access: %v", apperrors.ErrInternalServer, err)
	}

	lb := LoanWithBorrower{Loan: *l, CodebtorID: borrower.CodebtorID}
	if !lb.BelongsTo(userID) {
		s.logger.Warn("Denied loan access", "loanID", loanID, "userID", userID)
		return fmt.Errorf("%w: loan %d is not visible to user %d", apperrors.ErrForbidden, loanID, userID)
	}
	return nil
}

func (s *loanServiceImpl) GetLedger(ctx context.Context, loanID int64) (*Snapshot, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	payments, err := s.ListPayments(ctx, loanID)
	if err != nil {
		return nil, err
	}

	return ComputeSnapshot(l, payments, time.Now())
}

func (s *loanServiceImpl) ListPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	payments, err := s.repo.ListPaymentsByLoanID(ctx, loanID)
	if err != nil {
		s.logger.Error("Failed to list payments for loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to list payments for loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return payments, nil
}

func (s *loanServiceImpl) PreviewPayment(ctx context.Context, loanID int64, amount Money, date time.Time) (*Preview, error) {
	s.logger.Info("Previewing payment", "loanID", loanID, "amount", amount)

	if amount < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", apperrors.ErrInvalidPaymentAmount)
	}
	if date.IsZero() {
		date = time.Now()
	}

	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	prior, err := s.ListPayments(ctx, loanID)
	if err != nil {
		return nil, err
	}

	return ComputePaymentPreview(l, prior, amount, date)
}

func (s *loanServiceImpl) CommitPayment(ctx context.Context, loanID int64, amount Money, date time.Time) (receipt *PaymentReceipt, err error) {
	s.logger.Info("Committing payment", "loanID", loanID, "amount", amount)

	if amount <= 0 {
		monitoring.RecordPayment("failure_amount")
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidPaymentAmount)
	}
	if date.IsZero() {
		date = time.Now()
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Panic occurred during payment processing", "loanID", loanID, "error", p)
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			status := "failure_internal"
			switch {
			case errors.Is(err, apperrors.ErrLoanAlreadyPaid):
				status = "failure_already_paid"
			case errors.Is(err, apperrors.ErrInvalidDateRange):
				status = "failure_date_range"
			case errors.Is(err, apperrors.ErrNotFound):
				status = "failure_not_found"
			}
			monitoring.RecordPayment(status)
			s.logger.Error("Rolling back payment transaction", "loanID", loanID, "error", err)
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: cannot record payment, loan %d not found", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("%w: could not lock loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	if l.Status == StatusPaid {
		return nil, fmt.Errorf("%w (loanID: %d)", apperrors.ErrLoanAlreadyPaid, loanID)
	}

	prior, err := s.repo.ListPaymentsByLoanIDInTx(ctx, tx, loanID)
	if err != nil {
		return nil, fmt.Errorf("%w: could not load prior payments: %v", apperrors.ErrInternalServer, err)
	}

	preview, err := ComputePaymentPreview(l, prior, amount, date)
	if err != nil {
		return nil, err
	}

	inserted, err := s.repo.InsertPaymentInTx(ctx, tx, &Payment{
		LoanID:      loanID,
		Amount:      amount,
		PaymentDate: date,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: could not insert payment: %v", apperrors.ErrInternalServer, err)
	}

	if preview.WillBePaidOff {
		if err = s.repo.UpdateLoanStatusInTx(ctx, tx, loanID, StatusPaid); err != nil {
			return nil, fmt.Errorf("%w: could not mark loan paid: %v", apperrors.ErrInternalServer, err)
		}
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordPayment("success")
	s.logger.Info("Payment committed", "loanID", loanID, "paymentID", inserted.ID, "paidOff", preview.WillBePaidOff)

	s.publishPaymentEvents(ctx, l, inserted, preview)

	if preview.WillBePaidOff {
		monitoring.RecordLoanPaidOff()
	}

	return &PaymentReceipt{Payment: *inserted, PaidOff: preview.WillBePaidOff}, nil
}

func (s *loanServiceImpl) publishPaymentEvents(ctx context.Context, l *Loan, p *Payment, preview *Preview) {
	now := time.Now()

	if err := s.publisher.PublishPaymentRecorded(ctx, event.PaymentRecordedEvent{
		LoanID:      l.ID,
		PaymentID:   p.ID,
		Amount:      p.Amount,
		PaymentDate: p.PaymentDate,
		PaidOff:     preview.WillBePaidOff,
		Timestamp:   now,
	}); err != nil {
		s.logger.Warn("Failed to publish payment recorded event", "loanID", l.ID, "error", err)
	}

	if !preview.WillBePaidOff {
		return
	}
	if err := s.publisher.PublishLoanPaidOff(ctx, event.LoanPaidOffEvent{
		LoanID:    l.ID,
		UserID:    l.UserID,
		TotalPaid: preview.TotalPreviousPayments + p.Amount,
		Timestamp: now,
	}); err != nil {
		s.logger.Warn("Failed to publish loan paid off event", "loanID", l.ID, "error", err)
	}
}

func (s *loanServiceImpl) SettleIfCovered(ctx context.Context, loanID int64) (settled bool, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return false, fmt.Errorf("%w: loan %d not found", apperrors.ErrNotFound, loanID)
		}
		return false, fmt.Errorf("%w: could not lock loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	if l.Status != StatusActive {
		err = s.repo.CommitTx(ctx, tx)
		return false, err
	}

	payments, err := s.repo.ListPaymentsByLoanIDInTx(ctx, tx, loanID)
	if err != nil {
		return false, fmt.Errorf("%w: could not load payments: %v", apperrors.ErrInternalServer, err)
	}

	snap, err := ComputeSnapshot(l, payments, time.Now())
	if err != nil {
		return false, err
	}

	if snap.TotalPaid == 0 || snap.Remaining > 0 {
		err = s.repo.CommitTx(ctx, tx)
		return false, err
	}

	if err = s.repo.UpdateLoanStatusInTx(ctx, tx, loanID, StatusPaid); err != nil {
		return false, fmt.Errorf("%w: could not mark loan paid: %v", apperrors.ErrInternalServer, err)
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return false, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordLoanPaidOff()
	s.logger.Info("Loan settled by reconciliation", "loanID", loanID, "totalPaid", snap.TotalPaid)

	s.publishPaidOffEvent(ctx, l, snap)
	return true, nil
}

func (s *loanServiceImpl) publishPaidOffEvent(ctx context.Context, l *Loan, snap *Snapshot) {
	if err := s.publisher.PublishLoanPaidOff(ctx, event.LoanPaidOffEvent{
		LoanID:    l.ID,
		UserID:    l.UserID,
		TotalPaid: snap.TotalPaid,
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Warn("Failed to publish loan paid off event", "loanID", l.ID, "error", err)
	}
}
