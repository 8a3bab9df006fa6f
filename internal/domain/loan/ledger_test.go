package loan

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeLoan() *Loan {
	return &Loan{
		ID:           1,
		UserID:       7,
		Amount:       100_000,
		InterestRate: 7,
		Status:       StatusActive,
		CreatedAt:    date(2024, time.January, 10),
	}
}

func TestComputeSnapshot(t *testing.T) {
	t.Run("should accrue simple interest per elapsed month", func(t *testing.T) {
		snapshot, err := ComputeSnapshot(activeLoan(), nil, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.Equal(t, 3, snapshot.ElapsedMonths)
		assert.InDelta(t, 21_000.0, snapshot.AccruedInterest, 0.001)
		assert.InDelta(t, 121_000.0, snapshot.TotalOwed, 0.001)
		assert.Equal(t, 0.0, snapshot.TotalPaid)
		assert.InDelta(t, 121_000.0, snapshot.Remaining, 0.001)
		assert.Nil(t, snapshot.LastPaymentDate)
	})

	t.Run("should subtract recorded payments from the total owed", func(t *testing.T) {
		payments := []Payment{
			{ID: 1, LoanID: 1, Amount: 50_000, PaymentDate: date(2024, time.February, 10)},
		}
		snapshot, err := ComputeSnapshot(activeLoan(), payments, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.InDelta(t, 50_000.0, snapshot.TotalPaid, 0.001)
		assert.InDelta(t, 71_000.0, snapshot.Remaining, 0.001)
		assert.NotNil(t, snapshot.LastPaymentDate)
		assert.Equal(t, date(2024, time.February, 10), *snapshot.LastPaymentDate)
	})

	t.Run("should clamp remaining at zero when overpaid", func(t *testing.T) {
		payments := []Payment{
			{Amount: 130_000, PaymentDate: date(2024, time.March, 20)},
		}
		snapshot, err := ComputeSnapshot(activeLoan(), payments, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.Equal(t, 0.0, snapshot.Remaining)
	})

	t.Run("should stop accruing for a paid loan at its last payment date", func(t *testing.T) {
		l := activeLoan()
		l.Status = StatusPaid
		payments := []Payment{
			{Amount: 114_000, PaymentDate: date(2024, time.March, 5)},
		}
		snapshot, err := ComputeSnapshot(l, payments, date(2024, time.December, 25))
		assert.NoError(t, err)
		// 2024-01-10 to 2024-03-05 is two billing months.
		assert.Equal(t, 2, snapshot.ElapsedMonths)
		assert.InDelta(t, 14_000.0, snapshot.AccruedInterest, 0.001)
		assert.Equal(t, 0.0, snapshot.Remaining)
	})

	t.Run("should fall back to now for a paid loan without payments", func(t *testing.T) {
		l := activeLoan()
		l.Status = StatusPaid
		snapshot, err := ComputeSnapshot(l, nil, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.Equal(t, 3, snapshot.ElapsedMonths)
	})

	t.Run("should skip non-finite payment amounts", func(t *testing.T) {
		payments := []Payment{
			{Amount: math.NaN(), PaymentDate: date(2024, time.February, 1)},
			{Amount: math.Inf(1), PaymentDate: date(2024, time.February, 2)},
			{Amount: 10_000, PaymentDate: date(2024, time.February, 3)},
		}
		snapshot, err := ComputeSnapshot(activeLoan(), payments, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.InDelta(t, 10_000.0, snapshot.TotalPaid, 0.001)
	})

	t.Run("should be deterministic for a fixed evaluation date", func(t *testing.T) {
		first, err := ComputeSnapshot(activeLoan(), nil, date(2024, time.June, 1))
		assert.NoError(t, err)
		second, err := ComputeSnapshot(activeLoan(), nil, date(2024, time.June, 1))
		assert.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("should propagate a date range error", func(t *testing.T) {
		_, err := ComputeSnapshot(activeLoan(), nil, date(2023, time.December, 1))
		assert.Error(t, err)
	})
}

func TestComputePaymentPreview(t *testing.T) {
	t.Run("should mirror the snapshot formulas", func(t *testing.T) {
		preview, err := ComputePaymentPreview(activeLoan(), nil, 50_000, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.Equal(t, 3, preview.MonthsUntilPayment)
		assert.InDelta(t, 21_000.0, preview.InterestAtPayment, 0.001)
		assert.InDelta(t, 121_000.0, preview.TotalWithInterest, 0.001)
		assert.InDelta(t, 121_000.0, preview.RemainingBeforePayment, 0.001)
		assert.InDelta(t, 71_000.0, preview.RemainingAfterPayment, 0.001)
		assert.False(t, preview.WillBePaidOff)
	})

	t.Run("should flag payoff when the payment covers the balance", func(t *testing.T) {
		preview, err := ComputePaymentPreview(activeLoan(), nil, 121_000, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.True(t, preview.WillBePaidOff)

		preview, err = ComputePaymentPreview(activeLoan(), nil, 130_000, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.True(t, preview.WillBePaidOff)
	})

	t.Run("should account for prior payments", func(t *testing.T) {
		prior := []Payment{
			{Amount: 50_000, PaymentDate: date(2024, time.February, 10)},
		}
		preview, err := ComputePaymentPreview(activeLoan(), prior, 71_000, date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.InDelta(t, 50_000.0, preview.TotalPreviousPayments, 0.001)
		assert.InDelta(t, 71_000.0, preview.RemainingBeforePayment, 0.001)
		assert.True(t, preview.WillBePaidOff)
	})

	t.Run("should match the snapshot produced after committing the payment", func(t *testing.T) {
		l := activeLoan()
		paymentDate := date(2024, time.March, 25)
		amount := Money(60_000)

		preview, err := ComputePaymentPreview(l, nil, amount, paymentDate)
		assert.NoError(t, err)

		committed := []Payment{{Amount: amount, PaymentDate: paymentDate}}
		snapshot, err := ComputeSnapshot(l, committed, paymentDate)
		assert.NoError(t, err)

		assert.Equal(t, preview.MonthsUntilPayment, snapshot.ElapsedMonths)
		assert.InDelta(t, preview.InterestAtPayment, snapshot.AccruedInterest, 0.001)
		assert.InDelta(t, preview.TotalWithInterest, snapshot.TotalOwed, 0.001)
		assert.InDelta(t, preview.RemainingAfterPayment, snapshot.Remaining, 0.001)
	})

	t.Run("should propagate a date range error", func(t *testing.T) {
		_, err := ComputePaymentPreview(activeLoan(), nil, 100, date(2023, time.December, 1))
		assert.Error(t, err)
	})
}

func TestParseAmountOrZero(t *testing.T) {
	t.Run("should parse a decimal string", func(t *testing.T) {
		assert.Equal(t, 50_000.5, ParseAmountOrZero("50000.50"))
		assert.Equal(t, 42.0, ParseAmountOrZero(" 42 "))
	})

	t.Run("should fall back to zero on bad input", func(t *testing.T) {
		assert.Equal(t, 0.0, ParseAmountOrZero(""))
		assert.Equal(t, 0.0, ParseAmountOrZero("not-a-number"))
	})
}
