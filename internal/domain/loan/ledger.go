package loan

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the computed view of a loan's financial state. It is derived
// from the loan and its payments on every read and is never persisted.
type Snapshot struct {
	ElapsedMonths   int
	AccruedInterest Money
	TotalOwed       Money
	TotalPaid       Money
	Remaining       Money
	LastPaymentDate *time.Time
}

// Preview is a what-if computation for a payment that has not been committed
// yet. It uses the same month and interest formulas as Snapshot so that the
// state shown before committing matches the persisted outcome exactly.
type Preview struct {
	MonthsUntilPayment     int
	InterestAtPayment      Money
	TotalWithInterest      Money
	TotalPreviousPayments  Money
	RemainingBeforePayment Money
	RemainingAfterPayment  Money
	WillBePaidOff          bool
}

// ComputeSnapshot derives the ledger snapshot for a loan from its full
// payment list. Active loans accrue up to now; paid loans accrue up to their
// most recent payment (falling back to now if no payment was recorded).
func ComputeSnapshot(l *Loan, payments []Payment, now time.Time) (*Snapshot, error) {
	last := lastPaymentDate(payments)

	end := now
	if l.Status != StatusActive && last != nil {
		end = *last
	}

	months, err := ElapsedMonths(l.CreatedAt, end)
	if err != nil {
		return nil, err
	}

	interest := l.Amount * (l.InterestRate / 100) * Money(months)
	totalOwed := l.Amount + interest
	totalPaid := sumAmounts(payments)

	return &Snapshot{
		ElapsedMonths:   months,
		AccruedInterest: interest,
		TotalOwed:       totalOwed,
		TotalPaid:       totalPaid,
		Remaining:       math.Max(0, totalOwed-totalPaid),
		LastPaymentDate: last,
	}, nil
}

// ComputePaymentPreview computes what the loan state would become if a
// payment of the given amount were recorded on the given date. prior must not
// include the hypothetical payment itself.
func ComputePaymentPreview(l *Loan, prior []Payment, amount Money, date time.Time) (*Preview, error) {
	months, err := ElapsedMonths(l.CreatedAt, date)
	if err != nil {
		return nil, err
	}

	interest := l.Amount * (l.InterestRate / 100) * Money(months)
	totalWithInterest := l.Amount + interest
	totalPrevious := sumAmounts(prior)
	remainingBefore := totalWithInterest - totalPrevious

	return &Preview{
		MonthsUntilPayment:     months,
		InterestAtPayment:      interest,
		TotalWithInterest:      totalWithInterest,
		TotalPreviousPayments:  totalPrevious,
		RemainingBeforePayment: remainingBefore,
		RemainingAfterPayment:  remainingBefore - amount,
		WillBePaidOff:          amount >= remainingBefore,
	}, nil
}

// ParseAmountOrZero parses a monetary amount from its string form, falling
// back to zero on missing or unparseable input. Callers that need a hard
// failure on bad input must validate before calling.
func ParseAmountOrZero(s string) Money {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func sumAmounts(payments []Payment) Money {
	var total Money
	for _, p := range payments {
		if math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
			continue
		}
		total += p.Amount
	}
	return total
}

func lastPaymentDate(payments []Payment) *time.Time {
	var last *time.Time
	for i := range payments {
		d := payments[i].PaymentDate
		if last == nil || d.After(*last) {
			last = &d
		}
	}
	return last
}
