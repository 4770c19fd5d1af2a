package domain

import "time"

// TimePeriod is a half-open [Start, End) range.
type TimePeriod struct {
	Start time.Time
	End   time.Time
}

// Days returns the whole number of days in the period, at least 1.
func (p TimePeriod) Days() int {
	days := int(p.End.Sub(p.Start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}
