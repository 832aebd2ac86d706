// Package tracker implements the per-product price polling loop, its price
// history, and the registry of running loops.
package tracker

import (
	"time"

	"prodbot/models"
)

// History is the append-only sequence of prices observed for one tracked
// product. Each loop owns its history exclusively; there is no shared
// mutable state across tracked products. Comparisons only ever look at the
// two most recent entries, and nothing is ever evicted (sessions are finite
// and the poll interval is large).
type History struct {
	observations []models.PriceObservation
}

// Record appends an observation at the current time and returns it, so the
// caller can archive the exact entry that was recorded.
func (h *History) Record(price float64) models.PriceObservation {
	obs := models.PriceObservation{
		Price:      price,
		ObservedAt: time.Now(),
	}
	h.observations = append(h.observations, obs)
	return obs
}

// Len returns the number of recorded observations.
func (h *History) Len() int {
	return len(h.observations)
}

// Last returns the most recent observation and whether one exists.
func (h *History) Last() (models.PriceObservation, bool) {
	if len(h.observations) == 0 {
		return models.PriceObservation{}, false
	}
	return h.observations[len(h.observations)-1], true
}

// DroppedSincePrevious reports whether the most recent price is strictly
// lower than the one before it. Equal or increased prices are not a drop.
func (h *History) DroppedSincePrevious() bool {
	n := len(h.observations)
	if n < 2 {
		return false
	}
	return h.observations[n-1].Price < h.observations[n-2].Price
}

// LastDelta returns previous minus current as a non-negative amount. It is
// only meaningful when DroppedSincePrevious is true.
func (h *History) LastDelta() float64 {
	n := len(h.observations)
	if n < 2 {
		return 0
	}
	d := h.observations[n-2].Price - h.observations[n-1].Price
	if d < 0 {
		return 0
	}
	return d
}
