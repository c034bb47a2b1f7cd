package domain

import "errors"

var (
	ErrOfferNotFound       = errors.New("offer not found")
	ErrOfferNotActive      = errors.New("offer is not active")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSlotNotFound        = errors.New("time slot not found")
	ErrInvalidWindow       = errors.New("invalid meeting window")
	ErrSlotUnavailable     = errors.New("time slot already reserved")
	ErrSelfReservation     = errors.New("cannot reserve own offer")
	ErrNotOfferOwner       = errors.New("actor is not the offer owner")
	ErrAlreadyResolved     = errors.New("reservation already resolved")
	ErrReservationExpired  = errors.New("reservation expired")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRate         = errors.New("invalid rate")
	ErrInvalidDirection    = errors.New("invalid offer direction")
	ErrContactRequired     = errors.New("requester contact required")
	ErrOfficeRequired      = errors.New("meeting office required")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserBlocked         = errors.New("user is blocked")
	ErrEmailTaken          = errors.New("email already registered")
)
