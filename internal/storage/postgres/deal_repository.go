package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

type DealRepository struct {
	pool *pgxpool.Pool
}

func NewDealRepository(pool *pgxpool.Pool) *DealRepository {
	return &DealRepository{pool: pool}
}

func (r *DealRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetOfferForUpdate locks the offer row so two completions serialize and the
// second one observes the completed status.
func (r *DealRepository) GetOfferForUpdate(ctx context.Context, offerID int64) (domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 FOR UPDATE`
	o, err := scanOffer(db(ctx, r.pool).QueryRow(ctx, query, offerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("get offer for update: %w", err)
	}
	return o, nil
}

func (r *DealRepository) GetConfirmedReservation(ctx context.Context, offerID int64) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
WHERE offer_id = $1 AND status = 'confirmed'
ORDER BY confirmed_at DESC LIMIT 1`

	res, err := scanReservation(db(ctx, r.pool).QueryRow(ctx, query, offerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get confirmed reservation: %w", err)
	}
	return &res, nil
}

func (r *DealRepository) CreateDeal(ctx context.Context, deal domain.Deal) error {
	const stmt = `
INSERT INTO deals (user_id, direction, amount, rate, total, partner_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := db(ctx, r.pool).Exec(ctx, stmt,
		deal.UserID,
		deal.Direction,
		deal.Amount,
		deal.Rate,
		deal.Total,
		deal.PartnerName,
		deal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

func (r *DealRepository) SetOfferStatus(ctx context.Context, offerID int64, status domain.OfferStatus) error {
	return setOfferStatus(ctx, db(ctx, r.pool), offerID, status)
}

func (r *DealRepository) ListDealsByUser(ctx context.Context, userID int64) ([]domain.Deal, error) {
	const query = `
SELECT id, user_id, direction, amount, rate, total, partner_name, created_at
FROM deals
WHERE user_id = $1
ORDER BY created_at DESC, id DESC`

	rows, err := db(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var out []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := rows.Scan(&d.ID, &d.UserID, &d.Direction, &d.Amount, &d.Rate, &d.Total, &d.PartnerName, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("list deals: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
