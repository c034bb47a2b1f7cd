package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/app"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

// UserService is the minimal interface needed for account endpoints.
type UserService interface {
	Register(ctx context.Context, in app.RegisterInput) (domain.User, error)
	AttachTelegram(ctx context.Context, userID, telegramID int64) error
	Get(ctx context.Context, id int64) (domain.User, error)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// HandleRegister creates an account. The password never leaves the service
// unhashed.
func HandleRegister(svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		user, err := svc.Register(r.Context(), app.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Phone:    req.Phone,
			Password: req.Password,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(userResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Phone: user.Phone,
		})
	}
}

type attachTelegramRequest struct {
	TelegramID int64 `json:"telegram_id"`
}

// HandleAttachTelegram links a telegram id to the account for notifications.
func HandleAttachTelegram(svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(r, "userID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid user id")
			return
		}

		var req attachTelegramRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil || req.TelegramID == 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.AttachTelegram(r.Context(), userID, req.TelegramID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"linked"}`))
	}
}
