package domain

import "time"

// WindowTypeWeekly7d is the only metrics window type the aggregator
// maintains today.
const WindowTypeWeekly7d = "weekly_7d"

// SitterMetricsWindow holds rolling offer statistics for one sitter.
// Rates are nil when the window contains no offers; they are never
// substituted with zero. Recomputed in place, never append-only.
type SitterMetricsWindow struct {
	ID                    string
	OrgID                 string
	SitterID              string
	WindowStart           time.Time
	WindowEnd             time.Time
	WindowType            string
	AvgResponseSeconds    *float64
	MedianResponseSeconds *float64
	OfferAcceptRate       *float64
	OfferDeclineRate      *float64
	OfferExpireRate       *float64
	LastOfferRespondedAt  *time.Time
	UpdatedAt             time.Time
}
