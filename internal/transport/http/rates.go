package http

import (
	"context"
	"encoding/json"
	"net/http"
)

// RateSource quotes the current reference USDT/RUB rate.
type RateSource interface {
	Current(ctx context.Context) (float64, error)
}

type rateResponse struct {
	Pair string  `json:"pair"`
	Rate float64 `json:"rate"`
}

// HandleCurrentRate returns the advisory market rate. Offers carry their own
// rate; this is only a hint for pricing new ones.
func HandleCurrentRate(src RateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rate, err := src.Current(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, codeRateUnavailable, "rate feed unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rateResponse{Pair: "USDT/RUB", Rate: rate})
	}
}
