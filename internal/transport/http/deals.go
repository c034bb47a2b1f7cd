package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

// DealLister returns a user's completed deal history.
type DealLister interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Deal, error)
}

type dealResponse struct {
	ID          int64   `json:"id"`
	Direction   string  `json:"direction"`
	Amount      float64 `json:"amount"`
	Rate        float64 `json:"rate"`
	Total       float64 `json:"total"`
	PartnerName string  `json:"partner_name"`
	CreatedAt   string  `json:"created_at"`
}

// HandleUserDeals lists the user's completed deals, newest first.
func HandleUserDeals(svc DealLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(r, "userID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid user id")
			return
		}

		deals, err := svc.ListByUser(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]dealResponse, 0, len(deals))
		for _, d := range deals {
			resp = append(resp, dealResponse{
				ID:          d.ID,
				Direction:   string(d.Direction),
				Amount:      d.Amount,
				Rate:        d.Rate,
				Total:       d.Total,
				PartnerName: d.PartnerName,
				CreatedAt:   d.CreatedAt.Format(time.RFC3339),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
