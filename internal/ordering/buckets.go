package ordering

import (
	"time"

	"github.com/lhoang/tasksync/internal/model"
)

// BucketKind names a due-date group.
type BucketKind string

const (
	BucketOverdue  BucketKind = "overdue"
	BucketToday    BucketKind = "today"
	BucketThisWeek BucketKind = "this_week"
	BucketLater    BucketKind = "later"
	BucketNoDate   BucketKind = "no_date"
)

// Bucket is one due-date group of pending tasks, in due-date order.
type Bucket struct {
	Kind  BucketKind
	Tasks []model.Task
}

// DueBuckets partitions the pending half of a due-date ordering into
// overdue / today / this-week / later / no-date groups relative to now.
// Everything overdue collapses into a single bucket regardless of how
// old it is. Empty buckets are omitted; relative order within each
// bucket is preserved from the input.
func DueBuckets(g Grouped, now time.Time) []Bucket {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfTomorrow := startOfToday.AddDate(0, 0, 1)
	endOfWeek := startOfToday.AddDate(0, 0, 7)

	grouped := map[BucketKind][]model.Task{}
	for _, t := range g.Pending {
		kind := BucketNoDate
		if t.DueDate != nil {
			due := *t.DueDate
			switch {
			case due.Before(startOfToday):
				kind = BucketOverdue
			case due.Before(startOfTomorrow):
				kind = BucketToday
			case due.Before(endOfWeek):
				kind = BucketThisWeek
			default:
				kind = BucketLater
			}
		}
		grouped[kind] = append(grouped[kind], t)
	}

	var buckets []Bucket
	for _, kind := range []BucketKind{
		BucketOverdue, BucketToday, BucketThisWeek, BucketLater, BucketNoDate,
	} {
		if tasks := grouped[kind]; len(tasks) > 0 {
			buckets = append(buckets, Bucket{Kind: kind, Tasks: tasks})
		}
	}
	return buckets
}
