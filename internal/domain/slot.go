package domain

import "time"

// TimeSlot is one bookable 15-minute tick within an offer's meeting window.
// The reserved flag is authoritative for single-office offers; when an offer
// spans several offices the (slot time, office) pair is checked against
// active reservations instead.
type TimeSlot struct {
	ID         int64
	OfferID    int64
	SlotTime   time.Time
	Reserved   bool
	ReservedBy *int64
	ReservedAt *time.Time
}
