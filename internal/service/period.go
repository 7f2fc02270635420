package service

import (
	"fmt"
	"time"
)

// Period is a calendar month in UTC. End is exclusive.
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriod returns the period covering year/month.
func MonthPeriod(year int, month time.Month) (Period, error) {
	if year < 2000 || year > 9999 || month < time.January || month > time.December {
		return Period{}, fmt.Errorf("%w: %d-%02d", ErrInvalidPeriod, year, month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// PreviousMonth is the period billed by a run on runDate: a run on day 1 of M bills M-1.
func PreviousMonth(runDate time.Time) Period {
	runDate = runDate.UTC()
	firstOfRunMonth := time.Date(runDate.Year(), runDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfRunMonth.AddDate(0, -1, 0)
	return Period{Start: start, End: firstOfRunMonth}
}

// ParsePeriod accepts YYYY-MM.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return MonthPeriod(t.Year(), t.Month())
}

// LastDay is the inclusive last calendar day of the period.
func (p Period) LastDay() time.Time {
	return p.End.AddDate(0, 0, -1)
}

func (p Period) Label() string {
	return p.Start.Format("2006-01")
}
