package app

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/clock"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

type UserRepository interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (int64, error)
	SetTelegramID(ctx context.Context, userID, telegramID int64) error
}

type UserService struct {
	repo  UserRepository
	clock clock.Clock
}

func NewUserService(repo UserRepository, clk clock.Clock) *UserService {
	return &UserService{repo: repo, clock: clk}
}

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register creates a user with a bcrypt password hash. Email is the unique
// login identity.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Phone == "" || in.Password == "" {
		return domain.User{}, domain.ErrContactRequired
	}

	existing, err := s.repo.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if existing != nil {
		return domain.User{}, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	// A concurrent register with the same email loses on the unique index;
	// the repo maps that to ErrEmailTaken.
	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	user.ID = id
	return user, nil
}

// AttachTelegram links a telegram id to the account for notifications.
func (s *UserService) AttachTelegram(ctx context.Context, userID, telegramID int64) error {
	return s.repo.SetTelegramID(ctx, userID, telegramID)
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.repo.GetUser(ctx, id)
}
