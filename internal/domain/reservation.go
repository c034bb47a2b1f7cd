package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusRejected  ReservationStatus = "rejected"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Active reports whether the status still claims its slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

type RequesterKind string

const (
	RequesterRegistered RequesterKind = "registered"
	RequesterAnonymous  RequesterKind = "anonymous"
)

// Requester identifies who asked for a slot: a registered user by id, or an
// anonymous walk-in by name and phone. Exactly one variant is populated.
type Requester struct {
	Kind   RequesterKind
	UserID int64
	Name   string
	Phone  string
}

func RegisteredRequester(userID int64) Requester {
	return Requester{Kind: RequesterRegistered, UserID: userID}
}

func AnonymousRequester(name, phone string) Requester {
	return Requester{Kind: RequesterAnonymous, Name: name, Phone: phone}
}

func (r Requester) Anonymous() bool {
	return r.Kind == RequesterAnonymous
}

// Validate checks that the populated variant carries its required fields.
func (r Requester) Validate() error {
	switch r.Kind {
	case RequesterRegistered:
		if r.UserID == 0 {
			return ErrContactRequired
		}
	case RequesterAnonymous:
		if r.Name == "" || r.Phone == "" {
			return ErrContactRequired
		}
	default:
		return ErrContactRequired
	}
	return nil
}

// Reservation is a request to claim one (slot time, office) pair of an offer.
// At most one reservation per pair may be pending or confirmed at a time.
type Reservation struct {
	ID            int64
	OfferID       int64
	SlotTime      time.Time
	MeetingOffice string
	Requester     Requester
	Status        ReservationStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ConfirmedAt   *time.Time
	RejectedAt    *time.Time
}
