package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, email, phone, password_hash, COALESCE(telegram_id, 0), blocked, created_at`

func (r *UserRepository) GetUser(ctx context.Context, id int64) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := r.scanUser(db(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := r.scanUser(db(ctx, r.pool).QueryRow(ctx, query, email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	const stmt = `
INSERT INTO users (name, email, phone, password_hash, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

	var id int64
	err := db(ctx, r.pool).QueryRow(ctx, stmt,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.CreatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrEmailTaken
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (r *UserRepository) SetTelegramID(ctx context.Context, userID, telegramID int64) error {
	tag, err := db(ctx, r.pool).Exec(ctx, `UPDATE users SET telegram_id = $2 WHERE id = $1`, userID, telegramID)
	if err != nil {
		return fmt.Errorf("set telegram id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.TelegramID, &u.Blocked, &u.CreatedAt)
	return u, err
}
