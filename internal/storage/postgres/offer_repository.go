package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

type OfferRepository struct {
	pool *pgxpool.Pool
}

func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

func (r *OfferRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const offerColumns = `id, owner_id, direction, amount, rate, city, offices, window_start, window_end, meeting_time, status, created_at, expires_at`

func scanOffer(row pgx.Row) (domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.Direction, &o.Amount, &o.Rate, &o.City, &o.Offices,
		&o.WindowStart, &o.WindowEnd, &o.MeetingTime, &o.Status, &o.CreatedAt, &o.ExpiresAt,
	)
	return o, err
}

func (r *OfferRepository) CreateOffer(ctx context.Context, offer domain.Offer) (int64, error) {
	const stmt = `
INSERT INTO offers (owner_id, direction, amount, rate, city, offices, window_start, window_end, meeting_time, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`

	var id int64
	err := db(ctx, r.pool).QueryRow(ctx, stmt,
		offer.OwnerID,
		offer.Direction,
		offer.Amount,
		offer.Rate,
		offer.City,
		offer.Offices,
		offer.WindowStart,
		offer.WindowEnd,
		offer.MeetingTime,
		offer.Status,
		offer.CreatedAt,
		offer.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create offer: %w", err)
	}
	return id, nil
}

func (r *OfferRepository) UpdateOfferWindow(ctx context.Context, offer domain.Offer) error {
	const stmt = `
UPDATE offers
SET window_start = $2, window_end = $3, meeting_time = NULL
WHERE id = $1`

	tag, err := db(ctx, r.pool).Exec(ctx, stmt, offer.ID, offer.WindowStart, offer.WindowEnd)
	if err != nil {
		return fmt.Errorf("update offer window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

func (r *OfferRepository) GetOffer(ctx context.Context, offerID int64) (domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	o, err := scanOffer(db(ctx, r.pool).QueryRow(ctx, query, offerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

func (r *OfferRepository) ListActiveOffers(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE status = 'active' AND expires_at > $1 ORDER BY created_at DESC, id DESC`

	rows, err := db(ctx, r.pool).Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("list active offers: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OfferRepository) InsertSlots(ctx context.Context, offerID int64, times []time.Time) error {
	const stmt = `
INSERT INTO offer_time_slots (offer_id, slot_time)
SELECT $1, unnest($2::timestamptz[])
ON CONFLICT (offer_id, slot_time) DO NOTHING`

	if _, err := db(ctx, r.pool).Exec(ctx, stmt, offerID, times); err != nil {
		return fmt.Errorf("insert slots: %w", err)
	}
	return nil
}

func (r *OfferRepository) PruneSlots(ctx context.Context, offerID int64, keep []time.Time) error {
	const stmt = `
DELETE FROM offer_time_slots s
WHERE s.offer_id = $1
  AND NOT (s.slot_time = ANY($2::timestamptz[]))
  AND NOT s.reserved
  AND NOT EXISTS (
      SELECT 1 FROM reservations r
      WHERE r.offer_id = s.offer_id
        AND r.slot_time = s.slot_time
        AND r.status IN ('pending', 'confirmed'))`

	if _, err := db(ctx, r.pool).Exec(ctx, stmt, offerID, keep); err != nil {
		return fmt.Errorf("prune slots: %w", err)
	}
	return nil
}

func (r *OfferRepository) ListAvailableSlots(ctx context.Context, offerID int64, office string, now time.Time) ([]time.Time, error) {
	const query = `
SELECT s.slot_time
FROM offer_time_slots s
WHERE s.offer_id = $1
  AND s.slot_time > $3
  AND NOT s.reserved
  AND NOT EXISTS (
      SELECT 1 FROM reservations r
      WHERE r.offer_id = s.offer_id
        AND r.slot_time = s.slot_time
        AND r.meeting_office = $2
        AND r.status IN ('pending', 'confirmed'))
ORDER BY s.slot_time`

	rows, err := db(ctx, r.pool).Query(ctx, query, offerID, office, now)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("list available slots: %w", err)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

// DeleteOffer removes an offer; slot and reservation rows go with it via the
// cascade.
func (r *OfferRepository) DeleteOffer(ctx context.Context, offerID int64) error {
	tag, err := db(ctx, r.pool).Exec(ctx, `DELETE FROM offers WHERE id = $1`, offerID)
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

// DeleteElapsedOffers removes non-completed offers whose meeting window, legacy
// meeting time, or listing deadline is in the past. Slot rows go with them via
// the cascade.
func (r *OfferRepository) DeleteElapsedOffers(ctx context.Context, now time.Time) ([]int64, error) {
	const stmt = `
DELETE FROM offers
WHERE status <> 'completed'
  AND LEAST(expires_at,
            COALESCE(window_end, 'infinity'::timestamptz),
            COALESCE(meeting_time, 'infinity'::timestamptz)) < $1
RETURNING id`

	rows, err := db(ctx, r.pool).Query(ctx, stmt, now)
	if err != nil {
		return nil, fmt.Errorf("delete elapsed offers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("delete elapsed offers: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
