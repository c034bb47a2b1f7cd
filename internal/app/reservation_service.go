package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/notify"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOffer(ctx context.Context, offerID int64) (domain.Offer, error)
	GetSlotForUpdate(ctx context.Context, offerID int64, slotTime time.Time) (domain.TimeSlot, error)
	HasActiveReservation(ctx context.Context, offerID int64, slotTime time.Time, office string) (bool, error)
	CreateReservation(ctx context.Context, res domain.Reservation) (int64, error)
	MarkSlotReserved(ctx context.Context, slotID int64, reservedBy *int64, at time.Time) error
	ReleaseSlot(ctx context.Context, offerID int64, slotTime time.Time) error
	GetReservation(ctx context.Context, id int64) (domain.Reservation, error)
	// ResolveReservation flips status from pending to the given terminal state.
	// Returns false when the row is no longer pending, so racing resolvers
	// (owner response vs sweep) fail cleanly instead of double-applying.
	ResolveReservation(ctx context.Context, id int64, to domain.ReservationStatus, at time.Time) (bool, error)
	FindPendingByRequester(ctx context.Context, offerID int64, requester domain.Requester) (*domain.Reservation, error)
	// ExpirePending transitions every pending reservation past its deadline
	// to expired in one conditional update and returns the affected rows.
	ExpirePending(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	ListPendingForOwner(ctx context.Context, ownerID int64, now time.Time) ([]domain.Reservation, error)
	SetOfferStatus(ctx context.Context, offerID int64, status domain.OfferStatus) error
}

// UserDirectory resolves notification recipients and display names.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

type ReservationService struct {
	repo     ReservationRepository
	users    UserDirectory
	notifier notify.Notifier
	clock    clock.Clock
	ttl      time.Duration
	log      *logrus.Logger
}

const defaultReservationTTL = 15 * time.Minute

func NewReservationService(repo ReservationRepository, users UserDirectory, notifier notify.Notifier, clk clock.Clock, log *logrus.Logger, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:     repo,
		users:    users,
		notifier: notifier,
		clock:    clk,
		ttl:      defaultReservationTTL,
		log:      log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithReservationTTL overrides how long the owner has to answer a request.
func WithReservationTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

type RequestInput struct {
	OfferID   int64
	SlotTime  time.Time
	Office    string
	Requester domain.Requester
}

// Request claims one (slot time, office) pair of an offer. The availability
// check and the insert run inside a single transaction under a row lock on
// the slot, so of N concurrent requests for the same pair exactly one wins
// and the rest fail with ErrSlotUnavailable.
func (s *ReservationService) Request(ctx context.Context, in RequestInput) (domain.Reservation, error) {
	if in.Office == "" {
		return domain.Reservation{}, domain.ErrOfficeRequired
	}
	if err := in.Requester.Validate(); err != nil {
		return domain.Reservation{}, err
	}

	now := s.clock.Now()
	var result domain.Reservation
	var offer domain.Offer

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		offer, err = s.repo.GetOffer(txCtx, in.OfferID)
		if err != nil {
			return err
		}
		if !offer.Biddable() {
			return domain.ErrOfferNotActive
		}
		if !in.Requester.Anonymous() && in.Requester.UserID == offer.OwnerID {
			return domain.ErrSelfReservation
		}

		slot, err := s.repo.GetSlotForUpdate(txCtx, in.OfferID, in.SlotTime)
		if err != nil {
			return err
		}
		if slot.Reserved {
			return domain.ErrSlotUnavailable
		}
		taken, err := s.repo.HasActiveReservation(txCtx, in.OfferID, in.SlotTime, in.Office)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrSlotUnavailable
		}

		res := domain.Reservation{
			OfferID:       in.OfferID,
			SlotTime:      slot.SlotTime,
			MeetingOffice: in.Office,
			Requester:     in.Requester,
			Status:        domain.ReservationStatusPending,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.ttl),
		}
		// A concurrent winner that committed between our check and this
		// insert trips the partial unique index; the repo maps that to
		// ErrSlotUnavailable.
		id, err := s.repo.CreateReservation(txCtx, res)
		if err != nil {
			return err
		}
		res.ID = id

		if !offer.MultiOffice() {
			var reservedBy *int64
			if !in.Requester.Anonymous() {
				uid := in.Requester.UserID
				reservedBy = &uid
			}
			if err := s.repo.MarkSlotReserved(txCtx, slot.ID, reservedBy, now); err != nil {
				return err
			}
		}

		result = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.notifyRequested(ctx, offer, result)
	return result, nil
}

type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionReject  Decision = "reject"
)

// Respond is the offer owner's answer to a pending reservation. The state
// flip is a conditional update keyed on status=pending, so a response racing
// the expiry sweep applies at most once; the loser sees ErrAlreadyResolved.
func (s *ReservationService) Respond(ctx context.Context, reservationID, actorUserID int64, decision Decision) (domain.Reservation, error) {
	if decision != DecisionConfirm && decision != DecisionReject {
		return domain.Reservation{}, domain.ErrAlreadyResolved
	}

	now := s.clock.Now()
	var res domain.Reservation
	var offer domain.Offer

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		res, err = s.repo.GetReservation(txCtx, reservationID)
		if err != nil {
			return err
		}
		offer, err = s.repo.GetOffer(txCtx, res.OfferID)
		if err != nil {
			return err
		}
		if offer.OwnerID != actorUserID {
			return domain.ErrNotOfferOwner
		}
		if res.Status != domain.ReservationStatusPending {
			return domain.ErrAlreadyResolved
		}
		if now.After(res.ExpiresAt) {
			return domain.ErrReservationExpired
		}

		to := domain.ReservationStatusConfirmed
		if decision == DecisionReject {
			to = domain.ReservationStatusRejected
		}
		ok, err := s.repo.ResolveReservation(txCtx, reservationID, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyResolved
		}
		res.Status = to

		switch decision {
		case DecisionConfirm:
			res.ConfirmedAt = &now
			return s.repo.SetOfferStatus(txCtx, offer.ID, domain.OfferStatusReserved)
		default:
			res.RejectedAt = &now
			return s.repo.ReleaseSlot(txCtx, res.OfferID, res.SlotTime)
		}
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.notifyResolved(ctx, offer, res)
	return res, nil
}

// Cancel withdraws the requester's own pending reservation and frees the slot.
func (s *ReservationService) Cancel(ctx context.Context, offerID int64, requester domain.Requester) error {
	if err := requester.Validate(); err != nil {
		return err
	}
	now := s.clock.Now()

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.FindPendingByRequester(txCtx, offerID, requester)
		if err != nil {
			return err
		}
		if res == nil {
			return domain.ErrReservationNotFound
		}
		ok, err := s.repo.ResolveReservation(txCtx, res.ID, domain.ReservationStatusCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyResolved
		}
		return s.repo.ReleaseSlot(txCtx, res.OfferID, res.SlotTime)
	})
}

// SweepExpired moves every pending reservation past its deadline to expired
// and releases the slots. Safe to run redundantly: each transition is
// conditioned on status=pending, so a second sweep finds nothing to do.
func (s *ReservationService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		expired, err = s.repo.ExpirePending(txCtx, now)
		if err != nil {
			return err
		}
		for _, res := range expired {
			if err := s.repo.ReleaseSlot(txCtx, res.OfferID, res.SlotTime); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, res := range expired {
		s.notifyExpired(ctx, res)
	}
	return len(expired), nil
}

// Get returns a reservation by id so the requester can poll its status while
// waiting for the owner's answer.
func (s *ReservationService) Get(ctx context.Context, id int64) (domain.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

// ListPendingForOwner returns reservations still awaiting the owner's answer.
func (s *ReservationService) ListPendingForOwner(ctx context.Context, ownerID int64) ([]domain.Reservation, error) {
	return s.repo.ListPendingForOwner(ctx, ownerID, s.clock.Now())
}
