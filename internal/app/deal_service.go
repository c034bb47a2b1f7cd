package app

import (
	"context"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

type DealRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// GetOfferForUpdate locks the offer row so two Complete calls serialize.
	GetOfferForUpdate(ctx context.Context, offerID int64) (domain.Offer, error)
	GetConfirmedReservation(ctx context.Context, offerID int64) (*domain.Reservation, error)
	CreateDeal(ctx context.Context, deal domain.Deal) error
	SetOfferStatus(ctx context.Context, offerID int64, status domain.OfferStatus) error
	ListDealsByUser(ctx context.Context, userID int64) ([]domain.Deal, error)
}

// DealService finalizes completed exchanges into immutable deal records.
type DealService struct {
	repo  DealRepository
	users UserDirectory
	clock clock.Clock
}

func NewDealService(repo DealRepository, users UserDirectory, clk clock.Clock) *DealService {
	return &DealService{repo: repo, users: users, clock: clk}
}

// Complete converts the offer's confirmed reservation into deal rows and
// moves the offer to its terminal completed state. With a registered
// counterparty two rows are written, one per participant with swapped
// directions; without one, a single owner-only row. The offer row is locked
// for the duration, so a duplicate Complete observes the completed status
// and fails with ErrAlreadyResolved instead of writing twice.
func (s *DealService) Complete(ctx context.Context, offerID int64) error {
	now := s.clock.Now()

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		offer, err := s.repo.GetOfferForUpdate(txCtx, offerID)
		if err != nil {
			return err
		}
		if offer.Status == domain.OfferStatusCompleted {
			return domain.ErrAlreadyResolved
		}

		owner, err := s.users.GetUser(txCtx, offer.OwnerID)
		if err != nil {
			return err
		}

		res, err := s.repo.GetConfirmedReservation(txCtx, offerID)
		if err != nil {
			return err
		}

		partnerName := ""
		var counterpartyID int64
		if res != nil {
			if res.Requester.Anonymous() {
				partnerName = res.Requester.Name
			} else {
				counterparty, err := s.users.GetUser(txCtx, res.Requester.UserID)
				if err != nil {
					return err
				}
				partnerName = counterparty.DisplayName()
				counterpartyID = counterparty.ID
			}
		}

		total := offer.Total()
		ownerDeal := domain.Deal{
			UserID:      offer.OwnerID,
			Direction:   offer.Direction,
			Amount:      offer.Amount,
			Rate:        offer.Rate,
			Total:       total,
			PartnerName: partnerName,
			CreatedAt:   now,
		}
		if err := s.repo.CreateDeal(txCtx, ownerDeal); err != nil {
			return err
		}

		if counterpartyID != 0 {
			counterDeal := domain.Deal{
				UserID:      counterpartyID,
				Direction:   offer.Direction.Opposite(),
				Amount:      offer.Amount,
				Rate:        offer.Rate,
				Total:       total,
				PartnerName: owner.DisplayName(),
				CreatedAt:   now,
			}
			if err := s.repo.CreateDeal(txCtx, counterDeal); err != nil {
				return err
			}
		}

		return s.repo.SetOfferStatus(txCtx, offerID, domain.OfferStatusCompleted)
	})
}

// ListByUser returns the user's completed deals, newest first.
func (s *DealService) ListByUser(ctx context.Context, userID int64) ([]domain.Deal, error) {
	return s.repo.ListDealsByUser(ctx, userID)
}
