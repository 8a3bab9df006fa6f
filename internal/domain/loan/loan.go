package loan

import (
	"fmt"
	"strings"
	"time"

	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

const (
	DefaultInterestRate = 7.0
	DefaultReason       = "No reason"
)

type Money = float64

type LoanStatus string

const (
	StatusActive LoanStatus = "active"
	StatusPaid   LoanStatus = "paid"
)

type Loan struct {
	ID              int64
	UserID          int64
	Amount          Money
	InterestRate    Money
	Reason          string
	Status          LoanStatus
	IsRequest       bool
	RequestApproved bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Payment struct {
	ID          int64
	LoanID      int64
	Amount      Money
	PaymentDate time.Time
	CreatedAt   time.Time
}

// LoanWithBorrower is a loan row joined with the borrower fields needed by
// the dashboards: the borrower's display name and their co-debtor, if any.
type LoanWithBorrower struct {
	Loan
	BorrowerName string
	CodebtorID   *int64
}

// LoanDetail is a loan enriched with its computed ledger snapshot.
type LoanDetail struct {
	LoanWithBorrower
	Ledger Snapshot
}

func NewLoan(userID int64, amount Money, reason string, interestRate Money, createdAt time.Time) (*Loan, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: borrower id must be positive", apperrors.ErrInvalidArgument)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: loan amount must be positive", apperrors.ErrInvalidArgument)
	}
	if interestRate < 0 {
		return nil, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidArgument)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}
	if createdAt.IsZero() {
		createdAt = time.Now().Truncate(24 * time.Hour)
	} else if beforeCalendarDay(time.Now(), createdAt) {
		return nil, fmt.Errorf("%w: origination date %s is in the future",
			apperrors.ErrInvalidArgument, createdAt.Format(time.DateOnly))
	}

	return &Loan{
		UserID:          userID,
		Amount:          amount,
		InterestRate:    interestRate,
		Reason:          reason,
		Status:          StatusActive,
		IsRequest:       false,
		RequestApproved: true,
		CreatedAt:       createdAt,
	}, nil
}

// BelongsTo reports whether the given user may view this loan, either as the
// borrower or as the borrower's co-debtor.
func (l *LoanWithBorrower) BelongsTo(userID int64) bool {
	if l.UserID == userID {
		return true
	}
	return l.CodebtorID != nil && *l.CodebtorID == userID
}
