package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/fixora/triage/internal/domain"
)

// CoerceString keeps the value verbatim; an empty cell is missing.
func CoerceString(s string) domain.Optional[string] {
	if s == "" {
		return domain.None[string]()
	}
	return domain.Some(s)
}

// CoerceStatus parses a numeric status code. Non-numeric and non-integral
// values are missing, never zero.
func CoerceStatus(s string) domain.Optional[int] {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.None[int]()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.None[int]()
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return domain.None[int]()
	}
	return domain.Some(int(f))
}

// CoerceTime parses a date or datetime. A value carrying an offset keeps its
// wall clock and is re-anchored in loc; values without one are read in loc.
// Slashed dates are read month first, falling back to day first when the
// month would be out of range. Unparsable values are missing.
func CoerceTime(s string, loc *time.Location) (out domain.Optional[time.Time]) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.None[time.Time]()
	}

	// dateparse panics on a few malformed inputs
	defer func() {
		if r := recover(); r != nil {
			out = domain.None[time.Time]()
		}
	}()

	t, err := dateparse.ParseIn(s, loc, dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return domain.None[time.Time]()
	}
	return domain.Some(stripZone(t, loc))
}

func stripZone(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
