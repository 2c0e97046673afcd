// Package progress computes what a study session displays about its position.
// Everything here is a pure function of (current index, total).
package progress

import "fmt"

// DisplayPosition is the 1-based position shown as "Card N of total".
func DisplayPosition(index, total int) int {
	return index + 1
}

// Remaining is the number of cards after the current one. It is never negative.
func Remaining(index, total int) int {
	if index >= total {
		return 0
	}
	return total - index - 1
}

// PercentComplete is (index+1)/total as a percentage, clamped to [0, 100].
// An empty total yields 0.
func PercentComplete(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(index+1) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Snapshot bundles the progress metrics for one moment of a session.
type Snapshot struct {
	Index    int
	Total    int
	Position int
	Left     int
	Percent  float64
	Complete bool
}

// Compute builds a Snapshot for the given index and total.
func Compute(index, total int) Snapshot {
	return Snapshot{
		Index:    index,
		Total:    total,
		Position: DisplayPosition(index, total),
		Left:     Remaining(index, total),
		Percent:  PercentComplete(index, total),
		Complete: index >= total,
	}
}

// Label renders the snapshot the way the study view shows it.
func (s Snapshot) Label() string {
	if s.Complete {
		return fmt.Sprintf("Done: %d of %d cards, 0 remaining", s.Total, s.Total)
	}
	return fmt.Sprintf("Card %d of %d, %d remaining (%.0f%%)", s.Position, s.Total, s.Left, s.Percent)
}
