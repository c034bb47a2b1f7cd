package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/app"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

// OfferService is the minimal interface needed for offer endpoints.
type OfferService interface {
	Create(ctx context.Context, in app.CreateOfferInput) (domain.Offer, error)
	UpdateWindow(ctx context.Context, offerID, actorUserID int64, start, end time.Time) (domain.Offer, error)
	AvailableSlots(ctx context.Context, offerID int64, office string, now time.Time) ([]time.Time, error)
	Get(ctx context.Context, offerID int64) (domain.Offer, error)
	ListActive(ctx context.Context) ([]domain.Offer, error)
	Delete(ctx context.Context, offerID, actorUserID int64) error
}

// DealCompleter finalizes an offer into deal records.
type DealCompleter interface {
	Complete(ctx context.Context, offerID int64) error
}

type createOfferRequest struct {
	UserID      int64    `json:"user_id"`
	Direction   string   `json:"direction"`
	Amount      float64  `json:"amount"`
	Rate        float64  `json:"rate"`
	City        string   `json:"city"`
	Offices     []string `json:"offices"`
	WindowStart string   `json:"window_start,omitempty"`
	WindowEnd   string   `json:"window_end,omitempty"`
	MeetingTime string   `json:"meeting_time,omitempty"`
}

type offerResponse struct {
	ID          int64    `json:"id"`
	OwnerID     int64    `json:"owner_id"`
	Direction   string   `json:"direction"`
	Amount      float64  `json:"amount"`
	Rate        float64  `json:"rate"`
	Total       float64  `json:"total"`
	City        string   `json:"city"`
	Offices     []string `json:"offices"`
	WindowStart *string  `json:"window_start,omitempty"`
	WindowEnd   *string  `json:"window_end,omitempty"`
	MeetingTime *string  `json:"meeting_time,omitempty"`
	Status      string   `json:"status"`
	ExpiresAt   string   `json:"expires_at"`
}

func toOfferResponse(o domain.Offer) offerResponse {
	resp := offerResponse{
		ID:        o.ID,
		OwnerID:   o.OwnerID,
		Direction: string(o.Direction),
		Amount:    o.Amount,
		Rate:      o.Rate,
		Total:     o.Total(),
		City:      o.City,
		Offices:   o.Offices,
		Status:    string(o.Status),
		ExpiresAt: o.ExpiresAt.Format(time.RFC3339),
	}
	resp.WindowStart = formatTimePtr(o.WindowStart)
	resp.WindowEnd = formatTimePtr(o.WindowEnd)
	resp.MeetingTime = formatTimePtr(o.MeetingTime)
	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// HandleCreateOffer publishes a new offer with its slot inventory.
func HandleCreateOffer(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOfferRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		windowStart, err := parseTimePtr(req.WindowStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidWindow, "invalid window_start format")
			return
		}
		windowEnd, err := parseTimePtr(req.WindowEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidWindow, "invalid window_end format")
			return
		}
		meetingTime, err := parseTimePtr(req.MeetingTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidWindow, "invalid meeting_time format")
			return
		}

		offer, err := svc.Create(r.Context(), app.CreateOfferInput{
			OwnerID:     req.UserID,
			Direction:   domain.Direction(req.Direction),
			Amount:      req.Amount,
			Rate:        req.Rate,
			City:        req.City,
			Offices:     req.Offices,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			MeetingTime: meetingTime,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toOfferResponse(offer))
	}
}

// HandleListOffers lists offers still open for reservation requests.
func HandleListOffers(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offers, err := svc.ListActive(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]offerResponse, 0, len(offers))
		for _, o := range offers {
			resp = append(resp, toOfferResponse(o))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleGetOffer returns a single offer by id.
func HandleGetOffer(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, ok := pathID(r, "offerID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid offer id")
			return
		}
		offer, err := svc.Get(r.Context(), offerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toOfferResponse(offer))
	}
}

type availableSlotsResponse struct {
	OfferID int64    `json:"offer_id"`
	Office  string   `json:"office"`
	Slots   []string `json:"slots"`
}

// HandleOfferSlots lists slot times of the offer still bookable now.
func HandleOfferSlots(svc OfferService, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, ok := pathID(r, "offerID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid offer id")
			return
		}
		office := r.URL.Query().Get("office")

		slots, err := svc.AvailableSlots(r.Context(), offerID, office, now())
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := availableSlotsResponse{OfferID: offerID, Office: office, Slots: make([]string, 0, len(slots))}
		for _, at := range slots {
			resp.Slots = append(resp.Slots, at.Format(time.RFC3339))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type updateWindowRequest struct {
	UserID      int64  `json:"user_id"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

// HandleUpdateOfferWindow changes an offer's meeting window and regenerates
// its slot inventory.
func HandleUpdateOfferWindow(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, ok := pathID(r, "offerID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid offer id")
			return
		}

		var req updateWindowRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		start, err := time.Parse(time.RFC3339, req.WindowStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidWindow, "invalid window_start format")
			return
		}
		end, err := time.Parse(time.RFC3339, req.WindowEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidWindow, "invalid window_end format")
			return
		}

		offer, err := svc.UpdateWindow(r.Context(), offerID, req.UserID, start, end)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toOfferResponse(offer))
	}
}

// HandleDeleteOffer removes the owner's own offer together with its slots and
// reservations. The acting user is identified by the user_id query parameter.
func HandleDeleteOffer(svc OfferService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, ok := pathID(r, "offerID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid offer id")
			return
		}
		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid user_id")
			return
		}

		if err := svc.Delete(r.Context(), offerID, userID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"deleted"}`))
	}
}

// HandleCompleteOffer finalizes the exchange into deal records.
func HandleCompleteOffer(svc DealCompleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, ok := pathID(r, "offerID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid offer id")
			return
		}
		if err := svc.Complete(r.Context(), offerID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}
}
