package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const reservationColumns = `id, offer_id, slot_time, meeting_office, requester_user_id, requester_name, requester_phone, status, created_at, expires_at, confirmed_at, rejected_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res    domain.Reservation
		userID *int64
		name   *string
		phone  *string
	)
	err := row.Scan(
		&res.ID, &res.OfferID, &res.SlotTime, &res.MeetingOffice,
		&userID, &name, &phone,
		&res.Status, &res.CreatedAt, &res.ExpiresAt, &res.ConfirmedAt, &res.RejectedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	if userID != nil {
		res.Requester = domain.RegisteredRequester(*userID)
	} else {
		var n, p string
		if name != nil {
			n = *name
		}
		if phone != nil {
			p = *phone
		}
		res.Requester = domain.AnonymousRequester(n, p)
	}
	return res, nil
}

func requesterColumns(req domain.Requester) (userID *int64, name, phone *string) {
	if req.Anonymous() {
		return nil, &req.Name, &req.Phone
	}
	uid := req.UserID
	return &uid, nil, nil
}

func (r *ReservationRepository) GetOffer(ctx context.Context, offerID int64) (domain.Offer, error) {
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

func (r *ReservationRepository) SetOfferStatus(ctx context.Context, offerID int64, status domain.OfferStatus) error {
	return setOfferStatus(ctx, db(ctx, r.pool), offerID, status)
}

func setOfferStatus(ctx context.Context, q querier, offerID int64, status domain.OfferStatus) error {
	tag, err := q.Exec(ctx, `UPDATE offers SET status = $2 WHERE id = $1`, offerID, status)
	if err != nil {
		return fmt.Errorf("set offer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

// GetSlotForUpdate locks the slot row so concurrent requests for the same
// slot time serialize behind it.
func (r *ReservationRepository) GetSlotForUpdate(ctx context.Context, offerID int64, slotTime time.Time) (domain.TimeSlot, error) {
	const query = `
SELECT id, offer_id, slot_time, reserved, reserved_by, reserved_at
FROM offer_time_slots
WHERE offer_id = $1 AND slot_time = $2
FOR UPDATE`

	var s domain.TimeSlot
	err := db(ctx, r.pool).QueryRow(ctx, query, offerID, slotTime).
		Scan(&s.ID, &s.OfferID, &s.SlotTime, &s.Reserved, &s.ReservedBy, &s.ReservedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TimeSlot{}, domain.ErrSlotNotFound
		}
		return domain.TimeSlot{}, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

func (r *ReservationRepository) HasActiveReservation(ctx context.Context, offerID int64, slotTime time.Time, office string) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1 FROM reservations
    WHERE offer_id = $1 AND slot_time = $2 AND meeting_office = $3
      AND status IN ('pending', 'confirmed'))`

	var taken bool
	if err := db(ctx, r.pool).QueryRow(ctx, query, offerID, slotTime, office).Scan(&taken); err != nil {
		return false, fmt.Errorf("check active reservation: %w", err)
	}
	return taken, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) (int64, error) {
	const stmt = `
INSERT INTO reservations (offer_id, slot_time, meeting_office, requester_user_id, requester_name, requester_phone, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

	userID, name, phone := requesterColumns(res.Requester)
	var id int64
	err := db(ctx, r.pool).QueryRow(ctx, stmt,
		res.OfferID,
		res.SlotTime,
		res.MeetingOffice,
		userID,
		name,
		phone,
		res.Status,
		res.CreatedAt,
		res.ExpiresAt,
	).Scan(&id)
	if err != nil {
		// The partial unique index over active reservations: a concurrent
		// winner committed first.
		if isUniqueViolation(err) {
			return 0, domain.ErrSlotUnavailable
		}
		return 0, fmt.Errorf("create reservation: %w", err)
	}
	return id, nil
}

func (r *ReservationRepository) MarkSlotReserved(ctx context.Context, slotID int64, reservedBy *int64, at time.Time) error {
	const stmt = `UPDATE offer_time_slots SET reserved = TRUE, reserved_by = $2, reserved_at = $3 WHERE id = $1`

	tag, err := db(ctx, r.pool).Exec(ctx, stmt, slotID, reservedBy, at)
	if err != nil {
		return fmt.Errorf("mark slot reserved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

func (r *ReservationRepository) ReleaseSlot(ctx context.Context, offerID int64, slotTime time.Time) error {
	const stmt = `
UPDATE offer_time_slots
SET reserved = FALSE, reserved_by = NULL, reserved_at = NULL
WHERE offer_id = $1 AND slot_time = $2`

	if _, err := db(ctx, r.pool).Exec(ctx, stmt, offerID, slotTime); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(db(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// ResolveReservation flips a pending reservation to a terminal state. The
// WHERE status = 'pending' condition makes racing resolvers apply at most
// once; the loser gets false.
func (r *ReservationRepository) ResolveReservation(ctx context.Context, id int64, to domain.ReservationStatus, at time.Time) (bool, error) {
	const stmt = `
UPDATE reservations
SET status = $2,
    confirmed_at = CASE WHEN $2 = 'confirmed' THEN $3 ELSE confirmed_at END,
    rejected_at  = CASE WHEN $2 = 'rejected'  THEN $3 ELSE rejected_at  END
WHERE id = $1 AND status = 'pending'`

	tag, err := db(ctx, r.pool).Exec(ctx, stmt, id, string(to), at)
	if err != nil {
		return false, fmt.Errorf("resolve reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReservationRepository) FindPendingByRequester(ctx context.Context, offerID int64, requester domain.Requester) (*domain.Reservation, error) {
	var (
		query string
		arg   any
	)
	if requester.Anonymous() {
		query = `SELECT ` + reservationColumns + ` FROM reservations
WHERE offer_id = $1 AND status = 'pending' AND requester_phone = $2
ORDER BY id LIMIT 1`
		arg = requester.Phone
	} else {
		query = `SELECT ` + reservationColumns + ` FROM reservations
WHERE offer_id = $1 AND status = 'pending' AND requester_user_id = $2
ORDER BY id LIMIT 1`
		arg = requester.UserID
	}

	res, err := scanReservation(db(ctx, r.pool).QueryRow(ctx, query, offerID, arg))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending reservation: %w", err)
	}
	return &res, nil
}

// ExpirePending transitions every overdue pending reservation in one
// conditional update and returns the affected rows.
func (r *ReservationRepository) ExpirePending(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	stmt := `
UPDATE reservations
SET status = 'expired'
WHERE status = 'pending' AND expires_at < $1
RETURNING ` + reservationColumns

	rows, err := db(ctx, r.pool).Query(ctx, stmt, now)
	if err != nil {
		return nil, fmt.Errorf("expire pending reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("expire pending reservations: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *ReservationRepository) ListPendingForOwner(ctx context.Context, ownerID int64, now time.Time) ([]domain.Reservation, error) {
	query := `
SELECT r.id, r.offer_id, r.slot_time, r.meeting_office, r.requester_user_id, r.requester_name, r.requester_phone, r.status, r.created_at, r.expires_at, r.confirmed_at, r.rejected_at
FROM reservations r
JOIN offers o ON o.id = r.offer_id
WHERE o.owner_id = $1 AND r.status = 'pending' AND r.expires_at >= $2
ORDER BY r.id`

	rows, err := db(ctx, r.pool).Query(ctx, query, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("list pending reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending reservations: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
