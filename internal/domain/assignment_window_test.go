package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowActiveAtHalfOpenBounds(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w := AssignmentWindow{StartsAt: start, EndsAt: end}

	assert.True(t, w.ActiveAt(start), "start instant is covered")
	assert.True(t, w.ActiveAt(start.Add(time.Hour)))
	assert.False(t, w.ActiveAt(end), "end instant is excluded")
	assert.False(t, w.ActiveAt(start.Add(-time.Second)))
}

func TestWindowStatusAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w := AssignmentWindow{StartsAt: start, EndsAt: end}

	assert.Equal(t, WindowStatusFuture, w.StatusAt(start.Add(-time.Minute)))
	assert.Equal(t, WindowStatusActive, w.StatusAt(start))
	assert.Equal(t, WindowStatusPast, w.StatusAt(end))
}

func TestOverrideActiveAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	removed := start.Add(time.Hour)

	openEnded := RoutingOverride{StartsAt: start}
	assert.True(t, openEnded.ActiveAt(start.Add(72*time.Hour)), "nil endsAt holds until removed")

	withEnd := RoutingOverride{StartsAt: start, EndsAt: &removed}
	assert.True(t, withEnd.ActiveAt(start.Add(30*time.Minute)))
	// Half-open like windows: at endsAt the override no longer applies.
	assert.False(t, withEnd.ActiveAt(removed))
	assert.False(t, withEnd.ActiveAt(start.Add(2*time.Hour)))

	gone := RoutingOverride{StartsAt: start, RemovedAt: &removed}
	assert.False(t, gone.ActiveAt(start.Add(time.Minute)))
}

func TestOfferExpiredAt(t *testing.T) {
	expires := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	offer := OfferEvent{Status: OfferStatusSent, ExpiresAt: expires}

	assert.False(t, offer.ExpiredAt(expires.Add(-time.Second)))
	assert.False(t, offer.ExpiredAt(expires), "deadline instant itself is still valid")
	assert.True(t, offer.ExpiredAt(expires.Add(time.Second)))
	assert.False(t, offer.Terminal())
	offer.Status = OfferStatusAccepted
	assert.True(t, offer.Terminal())
}
