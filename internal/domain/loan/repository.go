package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	CreateLoan(ctx context.Context, l *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	// ListLoans returns every loan joined with its borrower's name and
	// co-debtor, ordered by id ascending.
	ListLoans(ctx context.Context) ([]LoanWithBorrower, error)

	ListAllPayments(ctx context.Context) ([]Payment, error)

	ListPaymentsByLoanID(ctx context.Context, loanID int64) ([]Payment, error)

	GetAllActiveLoanIDs(ctx context.Context) ([]int64, error)

	// GetLoanForUpdate locks the loan row for the duration of the
	// transaction so concurrent payment commits serialize per loan.
	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	ListPaymentsByLoanIDInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]Payment, error)

	InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *Payment) (*Payment, error)

	UpdateLoanStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, status LoanStatus) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
