package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestElapsedMonths(t *testing.T) {
	t.Run("should count the origination day itself as one month", func(t *testing.T) {
		months, err := ElapsedMonths(date(2024, time.January, 15), date(2024, time.January, 15))
		assert.NoError(t, err)
		assert.Equal(t, 1, months)
	})

	t.Run("should count one month while the anniversary day has not passed", func(t *testing.T) {
		months, err := ElapsedMonths(date(2024, time.January, 15), date(2024, time.February, 10))
		assert.NoError(t, err)
		assert.Equal(t, 1, months)

		months, err = ElapsedMonths(date(2024, time.January, 15), date(2024, time.February, 15))
		assert.NoError(t, err)
		assert.Equal(t, 1, months)
	})

	t.Run("should start a new month once the anniversary day has passed", func(t *testing.T) {
		months, err := ElapsedMonths(date(2024, time.January, 15), date(2024, time.February, 20))
		assert.NoError(t, err)
		assert.Equal(t, 2, months)
	})

	t.Run("should count whole months on the anniversary day", func(t *testing.T) {
		months, err := ElapsedMonths(date(2024, time.January, 1), date(2024, time.April, 1))
		assert.NoError(t, err)
		assert.Equal(t, 3, months)
	})

	t.Run("should count a partial trailing month as a full one", func(t *testing.T) {
		months, err := ElapsedMonths(date(2024, time.January, 10), date(2024, time.March, 25))
		assert.NoError(t, err)
		assert.Equal(t, 3, months)
	})

	t.Run("should use raw month-of-year difference across year boundaries", func(t *testing.T) {
		// Long-standing ledger behavior: the month difference is not
		// normalized by year, so December-to-January ranges go negative.
		months, err := ElapsedMonths(date(2023, time.December, 15), date(2024, time.January, 20))
		assert.NoError(t, err)
		assert.Equal(t, -10, months)

		months, err = ElapsedMonths(date(2023, time.November, 15), date(2024, time.February, 10))
		assert.NoError(t, err)
		assert.Equal(t, -9, months)
	})

	t.Run("should count same month and year regardless of elapsed days", func(t *testing.T) {
		months, err := ElapsedMonths(date(2024, time.March, 5), date(2024, time.March, 28))
		assert.NoError(t, err)
		assert.Equal(t, 1, months)
	})

	t.Run("should reject an end date before the start date", func(t *testing.T) {
		_, err := ElapsedMonths(date(2024, time.March, 10), date(2024, time.March, 9))
		assert.ErrorIs(t, err, apperrors.ErrInvalidDateRange)

		_, err = ElapsedMonths(date(2024, time.March, 10), date(2023, time.December, 20))
		assert.ErrorIs(t, err, apperrors.ErrInvalidDateRange)
	})

	t.Run("should ignore the time of day when comparing dates", func(t *testing.T) {
		start := time.Date(2024, time.March, 10, 23, 30, 0, 0, time.UTC)
		end := time.Date(2024, time.March, 10, 1, 0, 0, 0, time.UTC)
		months, err := ElapsedMonths(start, end)
		assert.NoError(t, err)
		assert.Equal(t, 1, months)
	})
}
