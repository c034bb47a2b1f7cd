package domain

import "time"

type OfferStatus string

const (
	OfferStatusActive    OfferStatus = "active"
	OfferStatusReserved  OfferStatus = "reserved"
	OfferStatusCompleted OfferStatus = "completed"
	OfferStatusInactive  OfferStatus = "inactive"
	OfferStatusExpired   OfferStatus = "expired"
)

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Opposite returns the counterparty side of a trade.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Offer is a published intent to exchange currency in person.
// An offer carries either a meeting window (WindowStart/WindowEnd, materialized
// into 15-minute slots) or a legacy single MeetingTime.
type Offer struct {
	ID          int64
	OwnerID     int64
	Direction   Direction
	Amount      float64
	Rate        float64
	City        string
	Offices     []string
	WindowStart *time.Time
	WindowEnd   *time.Time
	MeetingTime *time.Time
	Status      OfferStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// HasWindow reports whether the offer spans a bookable time window
// rather than a single legacy meeting time.
func (o Offer) HasWindow() bool {
	return o.WindowStart != nil && o.WindowEnd != nil
}

// MultiOffice reports whether slot identity must include the meeting office.
func (o Offer) MultiOffice() bool {
	return len(o.Offices) > 1
}

// Biddable reports whether the offer can still accept reservation requests.
func (o Offer) Biddable() bool {
	return o.Status == OfferStatusActive || o.Status == OfferStatusReserved
}

// Total is the fiat value of the offer at its published rate.
func (o Offer) Total() float64 {
	return o.Amount * o.Rate
}
