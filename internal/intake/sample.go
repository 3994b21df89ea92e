package intake

import (
	"math/rand"
	"sort"
	"time"

	"feedbackbot/internal/domain"
)

// NewRand returns the time-seeded source used in production. Samples are not
// reproducible across runs.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Sample draws a uniform random subset of at most limit items without
// replacement. When len(items) <= limit every item is returned. Chosen items
// keep their input order.
func Sample(items []domain.FeedbackItem, limit int, rng *rand.Rand) []domain.FeedbackItem {
	if limit <= 0 || len(items) <= limit {
		out := make([]domain.FeedbackItem, len(items))
		copy(out, items)
		return out
	}
	if rng == nil {
		rng = NewRand()
	}
	picked := rng.Perm(len(items))[:limit]
	sort.Ints(picked)
	out := make([]domain.FeedbackItem, 0, limit)
	for _, idx := range picked {
		out = append(out, items[idx])
	}
	return out
}
