package loan

import (
	"fmt"
	"time"

	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

// ElapsedMonths returns the number of whole billing months between the loan
// origination date and the evaluation date. A loan accrues at least one month
// of interest from the day it is created: the same calendar day counts as one
// month, as does a range of exactly one month where the end day-of-month has
// not yet passed the start day-of-month.
//
// It returns ErrInvalidDateRange when the end calendar date precedes the
// start calendar date.
func ElapsedMonths(start, end time.Time) (int, error) {
	if beforeCalendarDay(end, start) {
		return 0, fmt.Errorf("%w: %s is before %s",
			apperrors.ErrInvalidDateRange,
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return monthsBetween(start, end), nil
}

// monthsBetween is the billing rule itself. The month difference is taken on
// raw month-of-year values; ranges that span a year boundary keep the
// long-standing behavior of the production ledger.
func monthsBetween(start, end time.Time) int {
	sameYear := end.Year() == start.Year()
	sameMonth := end.Month() == start.Month()
	sameDay := end.Day() == start.Day()
	monthDiff := int(end.Month()) - int(start.Month())

	if (sameYear && sameMonth && sameDay) || (sameYear && monthDiff == 1 && end.Day() <= start.Day()) {
		return 1
	}
	if end.Day() <= start.Day() && monthDiff != 0 {
		return monthDiff
	}
	return monthDiff + 1
}

func beforeCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
