package domain

import (
	"strconv"
)

// BucketCount is the number of open-duration buckets: 1h..10h plus >10h
const BucketCount = 11

// BucketLabels returns the column labels of the open-duration buckets in order
func BucketLabels() []string {
	labels := make([]string, 0, BucketCount)
	for i := 1; i < BucketCount; i++ {
		labels = append(labels, strconv.Itoa(i)+"h")
	}
	return append(labels, ">10h")
}

// Tabular is anything that can be rendered or exported as a header plus rows
type Tabular interface {
	Header() []string
	Records() [][]string
}

// CountRow is one (username, count) pair
type CountRow struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// CountTable is a per-user count summary
type CountTable struct {
	Title       string     `json:"title"`
	CountColumn string     `json:"count_column"`
	Rows        []CountRow `json:"rows"`
}

// Header implements Tabular
func (t CountTable) Header() []string {
	return []string{"username", t.CountColumn}
}

// Records implements Tabular
func (t CountTable) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, []string{r.Username, strconv.Itoa(r.Count)})
	}
	return out
}

// Total sums every row's count
func (t CountTable) Total() int {
	total := 0
	for _, r := range t.Rows {
		total += r.Count
	}
	return total
}

// BucketRow is one user's open tickets split by hours open
type BucketRow struct {
	Username string           `json:"username"`
	Total    int              `json:"total"`
	Buckets  [BucketCount]int `json:"buckets"`
}

// BucketTable is the open-duration summary
type BucketTable struct {
	Title string      `json:"title"`
	Rows  []BucketRow `json:"rows"`
}

// Header implements Tabular
func (t BucketTable) Header() []string {
	return append([]string{"username", "Total Open Tickets"}, BucketLabels()...)
}

// Records implements Tabular
func (t BucketTable) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make([]string, 0, 2+BucketCount)
		rec = append(rec, r.Username, strconv.Itoa(r.Total))
		for _, n := range r.Buckets {
			rec = append(rec, strconv.Itoa(n))
		}
		out = append(out, rec)
	}
	return out
}

// Total sums every row's total
func (t BucketTable) Total() int {
	total := 0
	for _, r := range t.Rows {
		total += r.Total
	}
	return total
}
