package domain

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day or location
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// In returns midnight of the date in loc
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days later (earlier when n is negative)
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than o
func (d Date) Before(o Date) bool {
	return d.In(time.UTC).Before(o.In(time.UTC))
}

// DateSet is an arbitrary set of calendar dates. It is not assumed to be contiguous.
type DateSet map[Date]struct{}

// NewDateSet builds a set from the given dates
func NewDateSet(dates ...Date) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// DateRange returns every date from start to end inclusive
func DateRange(start, end Date) (DateSet, error) {
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	set := make(DateSet)
	for d := start; !end.Before(d); d = d.AddDays(1) {
		set[d] = struct{}{}
	}
	return set, nil
}

// EarliestSelectableDate is the default lower bound of a selectable range
var EarliestSelectableDate = Date{Year: 2000, Month: time.January, Day: 1}

// BoundedDateRange is DateRange restricted to the window [earliest, latest]
func BoundedDateRange(start, end, earliest, latest Date) (DateSet, error) {
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if start.Before(earliest) || latest.Before(end) {
		return nil, fmt.Errorf("%w: choose dates from %s to %s", ErrDateOutOfRange, earliest, latest)
	}
	return DateRange(start, end)
}

// Contains reports whether d is in the set
func (s DateSet) Contains(d Date) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the dates in ascending order
func (s DateSet) Sorted() []Date {
	dates := make([]Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
