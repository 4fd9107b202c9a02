package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a membership interval
type Status string

const (
	StatusInProgress Status = "In Progress"
	StatusActive     Status = "Active"
	StatusExpired    Status = "Expired"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// ParseStatus accepts the display form as well as compact and lower-case spellings.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "inprogress", "in_progress", "pending":
		return StatusInProgress, true
	case "active":
		return StatusActive, true
	case "expired":
		return StatusExpired, true
	}
	return "", false
}

// DateOf truncates t to its calendar date, expressed as midnight UTC.
// The year, month and day are read in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, InvalidDateError{Field: field, Reason: "is required"}
	}
	// Browsers and the JSON API sometimes send a full timestamp
	if len(value) > len(DateLayout) && value[len(DateLayout)] == 'T' {
		value = value[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, InvalidDateError{Field: field, Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// ParseOptionalDate parses value if non-empty.
func ParseOptionalDate(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := ParseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ValidateInterval checks that start is present and end does not precede it.
func ValidateInterval(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return InvalidDateError{Field: "start_date", Reason: "is required"}
	}
	if end != nil && DateOf(*end).Before(DateOf(start)) {
		return InvalidDateError{
			Field:  "end_date",
			Value:  end.Format(DateLayout),
			Reason: "precedes start date " + start.Format(DateLayout),
		}
	}
	return nil
}

// ResolveStatus classifies an interval relative to now. Both bounds are
// inclusive calendar dates and a nil end date never expires.
func ResolveStatus(start time.Time, end *time.Time, now time.Time) (Status, error) {
	if err := ValidateInterval(start, end); err != nil {
		return "", err
	}

	today := DateOf(now)
	switch {
	case today.Before(DateOf(start)):
		return StatusInProgress, nil
	case end == nil || !today.After(DateOf(*end)):
		return StatusActive, nil
	default:
		return StatusExpired, nil
	}
}

// EndDateFor adds months to start with calendar overflow (Jan 31 + 1 month is early March).
func EndDateFor(start time.Time, months int) time.Time {
	return DateOf(start).AddDate(0, months, 0)
}

// CurrentInterval picks the interval that defines a member's status at now:
// the latest-starting active one, else the earliest upcoming one, else the
// one that ended last. Invalid intervals are skipped. Returns nil when
// nothing qualifies.
func CurrentInterval(intervals []*Membership, now time.Time) *Membership {
	var active, upcoming, expired *Membership

	for _, iv := range intervals {
		if iv == nil {
			continue
		}
		status, err := ResolveStatus(iv.StartDate, iv.EndDate, now)
		if err != nil {
			continue
		}
		switch status {
		case StatusActive:
			if active == nil || iv.StartDate.After(active.StartDate) {
				active = iv
			}
		case StatusInProgress:
			if upcoming == nil || iv.StartDate.Before(upcoming.StartDate) {
				upcoming = iv
			}
		case StatusExpired:
			// expired intervals always have an end date
			if expired == nil || iv.EndDate.After(*expired.EndDate) {
				expired = iv
			}
		}
	}

	switch {
	case active != nil:
		return active
	case upcoming != nil:
		return upcoming
	default:
		return expired
	}
}
