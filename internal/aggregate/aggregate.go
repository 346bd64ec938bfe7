// Package aggregate derives per-user summary tables from normalized tickets.
// Every summary is a filter followed by a count per key.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/fixora/triage/internal/domain"
)

// Column names as shown on the dashboard and in CSV exports
const (
	OpenCountColumn     = "Open tickets"
	ResolvedCountColumn = "Resolved on Selected Dates"
	DailyCountColumn    = "Ticket Count"
)

// CountBy counts the records accepted by keep, grouped by key. Records for
// which key reports no value are skipped, so a missing key is never counted
// under a zero value.
func CountBy[K comparable](records []domain.TicketRecord, keep func(domain.TicketRecord) bool, key func(domain.TicketRecord) (K, bool)) map[K]int {
	counts := make(map[K]int)
	for _, rec := range records {
		if !keep(rec) {
			continue
		}
		k, ok := key(rec)
		if !ok {
			continue
		}
		counts[k]++
	}
	return counts
}

func byUsername(rec domain.TicketRecord) (string, bool) {
	return rec.Username.Get()
}

// OpenByUser counts open tickets (status 0 or 2) per user, with no date filter
func OpenByUser(records []domain.TicketRecord) domain.CountTable {
	counts := CountBy(records, domain.TicketRecord.IsOpen, byUsername)
	return domain.CountTable{
		Title:       "Open Tickets Summary",
		CountColumn: OpenCountColumn,
		Rows:        countRows(counts),
	}
}

// ResolvedInRange counts resolved tickets (status 1) whose first close falls on
// one of the given dates
func ResolvedInRange(records []domain.TicketRecord, dates domain.DateSet) domain.CountTable {
	keep := func(rec domain.TicketRecord) bool {
		if !rec.IsResolved() {
			return false
		}
		closed, ok := rec.FirstClosedAt.Get()
		return ok && dates.Contains(domain.DateOf(closed))
	}
	return domain.CountTable{
		Title:       "Resolved Tickets on Selected Dates",
		CountColumn: ResolvedCountColumn,
		Rows:        countRows(CountBy(records, keep, byUsername)),
	}
}

// DailyByUser counts tickets created on day by users in the allow-list
func DailyByUser(records []domain.TicketRecord, day domain.Date, allowed []string) domain.CountTable {
	allow := make(map[string]struct{}, len(allowed))
	for _, u := range allowed {
		allow[u] = struct{}{}
	}

	keep := func(rec domain.TicketRecord) bool {
		created, ok := rec.CreatedAt.Get()
		if !ok || domain.DateOf(created) != day {
			return false
		}
		user, ok := rec.Username.Get()
		if !ok {
			return false
		}
		_, listed := allow[user]
		return listed
	}
	return domain.CountTable{
		Title:       "Today's Ticket Count for Selected Users",
		CountColumn: DailyCountColumn,
		Rows:        countRows(CountBy(records, keep, byUsername)),
	}
}

// Bucket returns the zero-based open-duration bucket for elapsed hours.
// Bucket i (0..9) covers (i, i+1] hours and bucket 10 covers anything above
// ten hours. Non-positive and non-finite durations have no bucket.
func Bucket(hours float64) (int, bool) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return 0, false
	}
	if hours > domain.BucketCount-1 {
		return domain.BucketCount - 1, true
	}
	return int(math.Ceil(hours)) - 1, true
}

type userBucket struct {
	user   string
	bucket int
}

// OpenDuration splits each user's open tickets by how many hours they have
// been open as of now. Tickets with a missing or future received time are
// left out of both the buckets and the total, so the buckets always sum to
// the total. Every user with an open ticket gets a row.
func OpenDuration(records []domain.TicketRecord, now time.Time) domain.BucketTable {
	key := func(rec domain.TicketRecord) (userBucket, bool) {
		user, ok := rec.Username.Get()
		if !ok {
			return userBucket{}, false
		}
		received, ok := rec.ReceivedAt.Get()
		if !ok {
			return userBucket{}, false
		}
		b, ok := Bucket(now.Sub(received).Hours())
		if !ok {
			return userBucket{}, false
		}
		return userBucket{user: user, bucket: b}, true
	}

	users := CountBy(records, domain.TicketRecord.IsOpen, byUsername)
	rows := make(map[string]*domain.BucketRow, len(users))
	for user := range users {
		rows[user] = &domain.BucketRow{Username: user}
	}

	for k, n := range CountBy(records, domain.TicketRecord.IsOpen, key) {
		row := rows[k.user]
		row.Buckets[k.bucket] += n
		row.Total += n
	}

	out := make([]domain.BucketRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })

	return domain.BucketTable{
		Title: "Open Tickets by Duration (Hours)",
		Rows:  out,
	}
}

// countRows orders by username for display only
func countRows(counts map[string]int) []domain.CountRow {
	rows := make([]domain.CountRow, 0, len(counts))
	for user, n := range counts {
		rows = append(rows, domain.CountRow{Username: user, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Username < rows[j].Username })
	return rows
}
