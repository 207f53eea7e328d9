// Package recommend derives follow recommendations from a set of posts.
//
// Every function here is pure: candidates are aggregated from scratch per
// call in an insertion-ordered table keyed by a normalized identity (author
// handle, topic label or URL), then sorted stably by score. Equal scores
// therefore keep input order and repeated calls give identical output.
//
// The weights and thresholds are hand-tuned and kept as named constants so
// they can be adjusted without touching the aggregation logic.
package recommend

import (
	"math"
	"sort"
)

// Default list sizes.
const (
	DefaultPeopleLimit    = 5
	DefaultTopicLimit     = 5
	DefaultDiscoveryLimit = 8
	EvidenceLimit         = 3
)

// Person is a recommended account.
type Person struct {
	Handle string  `json:"handle"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Topic is a recommended topic.
type Topic struct {
	Topic  string  `json:"topic"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Creator scores the primary post's author.
type Creator struct {
	Handle       string  `json:"handle"`
	ShouldFollow bool    `json:"shouldFollow"`
	ImpactScore  float64 `json:"impactScore"`
	Reason       string  `json:"reason"`
}

// round2 rounds to two decimals for presentation. Sorting always uses the
// unrounded value.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ordered is an insertion-ordered table of aggregates keyed by string.
type ordered[T any] struct {
	index map[string]int
	items []*T
}

func newOrdered[T any]() *ordered[T] {
	return &ordered[T]{index: make(map[string]int)}
}

// get returns the aggregate for key, creating it with init on first use.
func (o *ordered[T]) get(key string, init func() *T) *T {
	if i, ok := o.index[key]; ok {
		return o.items[i]
	}
	v := init()
	o.index[key] = len(o.items)
	o.items = append(o.items, v)
	return v
}

// sortedByScore stably sorts items by score descending and truncates to limit.
func sortedByScore[T any](items []*T, score func(*T) float64, limit int) []*T {
	out := make([]*T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i]) > score(out[j])
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
