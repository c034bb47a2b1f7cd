package domain

import "time"

// Deal is an immutable record of a completed exchange, one row per
// participant. Written once by offer completion, never updated.
type Deal struct {
	ID          int64
	UserID      int64
	Direction   Direction
	Amount      float64
	Rate        float64
	Total       float64
	PartnerName string
	CreatedAt   time.Time
}
