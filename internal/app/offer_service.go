package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/notify"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/slots"
)

type OfferRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOffer(ctx context.Context, offer domain.Offer) (int64, error)
	UpdateOfferWindow(ctx context.Context, offer domain.Offer) error
	GetOffer(ctx context.Context, offerID int64) (domain.Offer, error)
	ListActiveOffers(ctx context.Context, now time.Time) ([]domain.Offer, error)
	// InsertSlots adds missing slot rows, skipping times already materialized.
	InsertSlots(ctx context.Context, offerID int64, times []time.Time) error
	// PruneSlots drops unreserved slot rows outside the given set of times.
	// Rows claimed by a live reservation are never touched.
	PruneSlots(ctx context.Context, offerID int64, keep []time.Time) error
	ListAvailableSlots(ctx context.Context, offerID int64, office string, now time.Time) ([]time.Time, error)
	DeleteOffer(ctx context.Context, offerID int64) error
	DeleteElapsedOffers(ctx context.Context, now time.Time) ([]int64, error)
}

type OfferService struct {
	repo     OfferRepository
	users    UserDirectory
	notifier notify.Notifier
	clock    clock.Clock
	offerTTL time.Duration
	log      *logrus.Logger
}

const defaultOfferTTL = 24 * time.Hour

func NewOfferService(repo OfferRepository, users UserDirectory, notifier notify.Notifier, clk clock.Clock, log *logrus.Logger, opts ...OfferServiceOption) *OfferService {
	svc := &OfferService{
		repo:     repo,
		users:    users,
		notifier: notifier,
		clock:    clk,
		offerTTL: defaultOfferTTL,
		log:      log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OfferServiceOption func(*OfferService)

// WithOfferTTL overrides how long an offer stays listed without being acted on.
func WithOfferTTL(d time.Duration) OfferServiceOption {
	return func(s *OfferService) {
		if d > 0 {
			s.offerTTL = d
		}
	}
}

type CreateOfferInput struct {
	OwnerID     int64
	Direction   domain.Direction
	Amount      float64
	Rate        float64
	City        string
	Offices     []string
	WindowStart *time.Time
	WindowEnd   *time.Time
	// MeetingTime is the legacy single-slot variant, used when no window is given.
	MeetingTime *time.Time
}

// Create publishes an offer and materializes its bookable slots: one row per
// 15-minute tick of the window, or a single row for a legacy meeting time.
func (s *OfferService) Create(ctx context.Context, in CreateOfferInput) (domain.Offer, error) {
	if !in.Direction.Valid() {
		return domain.Offer{}, domain.ErrInvalidDirection
	}
	if in.Amount <= 0 {
		return domain.Offer{}, domain.ErrInvalidAmount
	}
	if in.Rate <= 0 {
		return domain.Offer{}, domain.ErrInvalidRate
	}

	ticks, err := s.slotTimes(in.WindowStart, in.WindowEnd, in.MeetingTime)
	if err != nil {
		return domain.Offer{}, err
	}

	owner, err := s.users.GetUser(ctx, in.OwnerID)
	if err != nil {
		return domain.Offer{}, err
	}
	if owner.Blocked {
		return domain.Offer{}, domain.ErrUserBlocked
	}

	now := s.clock.Now()
	offer := domain.Offer{
		OwnerID:     in.OwnerID,
		Direction:   in.Direction,
		Amount:      in.Amount,
		Rate:        in.Rate,
		City:        in.City,
		Offices:     in.Offices,
		WindowStart: in.WindowStart,
		WindowEnd:   in.WindowEnd,
		MeetingTime: in.MeetingTime,
		Status:      domain.OfferStatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.offerTTL),
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		id, err := s.repo.CreateOffer(txCtx, offer)
		if err != nil {
			return err
		}
		offer.ID = id
		return s.repo.InsertSlots(txCtx, id, ticks)
	})
	if err != nil {
		return domain.Offer{}, err
	}

	s.notifier.NotifyAdmins(ctx, fmt.Sprintf(`📝 Новое объявление!

👤 Пользователь: %s
🏙️ Город: %s
📝 Тип: %s
💰 Сумма: %.2f USDT
💱 Курс: %.2f ₽
💵 Итого: %.2f ₽`,
		owner.DisplayName(), offer.City, directionText(offer.Direction),
		offer.Amount, offer.Rate, offer.Total()))

	return offer, nil
}

// UpdateWindow changes an offer's meeting window and reconciles its slot
// inventory. Regeneration is idempotent: existing ticks are kept, new ticks
// are inserted, and only unreserved ticks outside the window are pruned.
func (s *OfferService) UpdateWindow(ctx context.Context, offerID, actorUserID int64, start, end time.Time) (domain.Offer, error) {
	ticks, err := slots.Ticks(start, end)
	if err != nil {
		return domain.Offer{}, err
	}

	var offer domain.Offer
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		offer, err = s.repo.GetOffer(txCtx, offerID)
		if err != nil {
			return err
		}
		if offer.OwnerID != actorUserID {
			return domain.ErrNotOfferOwner
		}
		if !offer.Biddable() {
			return domain.ErrOfferNotActive
		}

		offer.WindowStart = &start
		offer.WindowEnd = &end
		offer.MeetingTime = nil
		if err := s.repo.UpdateOfferWindow(txCtx, offer); err != nil {
			return err
		}
		if err := s.repo.InsertSlots(txCtx, offerID, ticks); err != nil {
			return err
		}
		return s.repo.PruneSlots(txCtx, offerID, ticks)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}

// AvailableSlots lists slot times of the offer that are still bookable at
// the given instant for the given office. The office may be empty for
// single-office offers.
func (s *OfferService) AvailableSlots(ctx context.Context, offerID int64, office string, now time.Time) ([]time.Time, error) {
	offer, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if office == "" && len(offer.Offices) > 0 {
		office = offer.Offices[0]
	}
	return s.repo.ListAvailableSlots(ctx, offerID, office, now)
}

func (s *OfferService) Get(ctx context.Context, offerID int64) (domain.Offer, error) {
	return s.repo.GetOffer(ctx, offerID)
}

func (s *OfferService) ListActive(ctx context.Context) ([]domain.Offer, error) {
	return s.repo.ListActiveOffers(ctx, s.clock.Now())
}

// Delete removes the owner's own offer along with its slots and reservations.
func (s *OfferService) Delete(ctx context.Context, offerID, actorUserID int64) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		offer, err := s.repo.GetOffer(txCtx, offerID)
		if err != nil {
			return err
		}
		if offer.OwnerID != actorUserID {
			return domain.ErrNotOfferOwner
		}
		return s.repo.DeleteOffer(txCtx, offerID)
	})
}

// CleanupElapsed removes offers whose meeting window has fully passed, or
// which sat past their listing deadline without completing. Completed offers
// are kept as history.
func (s *OfferService) CleanupElapsed(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.DeleteElapsedOffers(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		s.log.WithField("count", len(ids)).Info("removed elapsed offers")
	}
	return len(ids), nil
}

func (s *OfferService) slotTimes(start, end, meetingTime *time.Time) ([]time.Time, error) {
	switch {
	case start != nil && end != nil:
		return slots.Ticks(*start, *end)
	case meetingTime != nil:
		return []time.Time{*meetingTime}, nil
	default:
		return nil, domain.ErrInvalidWindow
	}
}
