package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/app"
	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

// ReservationService is the minimal interface needed for reservation endpoints.
type ReservationService interface {
	Request(ctx context.Context, in app.RequestInput) (domain.Reservation, error)
	Respond(ctx context.Context, reservationID, actorUserID int64, decision app.Decision) (domain.Reservation, error)
	Cancel(ctx context.Context, offerID int64, requester domain.Requester) error
	Get(ctx context.Context, id int64) (domain.Reservation, error)
	ListPendingForOwner(ctx context.Context, ownerID int64) ([]domain.Reservation, error)
}

type requesterPayload struct {
	UserID int64  `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

func (p requesterPayload) toDomain() domain.Requester {
	if p.UserID != 0 {
		return domain.RegisteredRequester(p.UserID)
	}
	return domain.AnonymousRequester(p.Name, p.Phone)
}

type createReservationRequest struct {
	OfferID   int64            `json:"offer_id"`
	SlotTime  string           `json:"slot_time"`
	Office    string           `json:"office"`
	Requester requesterPayload `json:"requester"`
}

type reservationResponse struct {
	ID            int64   `json:"id"`
	OfferID       int64   `json:"offer_id"`
	SlotTime      string  `json:"slot_time"`
	MeetingOffice string  `json:"meeting_office"`
	RequesterID   int64   `json:"requester_id,omitempty"`
	RequesterName string  `json:"requester_name,omitempty"`
	Status        string  `json:"status"`
	ExpiresAt     string  `json:"expires_at"`
	ConfirmedAt   *string `json:"confirmed_at,omitempty"`
	RejectedAt    *string `json:"rejected_at,omitempty"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	out := reservationResponse{
		ID:            res.ID,
		OfferID:       res.OfferID,
		SlotTime:      res.SlotTime.Format(time.RFC3339),
		MeetingOffice: res.MeetingOffice,
		Status:        string(res.Status),
		ExpiresAt:     res.ExpiresAt.Format(time.RFC3339),
		ConfirmedAt:   formatTimePtr(res.ConfirmedAt),
		RejectedAt:    formatTimePtr(res.RejectedAt),
	}
	if res.Requester.Anonymous() {
		out.RequesterName = res.Requester.Name
	} else {
		out.RequesterID = res.Requester.UserID
	}
	return out
}

// HandleCreateReservation claims one (slot time, office) pair of an offer.
func HandleCreateReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		slotTime, err := time.Parse(time.RFC3339, req.SlotTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid slot_time format")
			return
		}

		res, err := svc.Request(r.Context(), app.RequestInput{
			OfferID:   req.OfferID,
			SlotTime:  slotTime,
			Office:    req.Office,
			Requester: req.Requester.toDomain(),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toReservationResponse(res))
	}
}

type respondReservationRequest struct {
	UserID   int64  `json:"user_id"`
	Decision string `json:"decision"`
}

// HandleRespondReservation is the offer owner's confirm-or-reject answer.
func HandleRespondReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, ok := pathID(r, "reservationID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid reservation id")
			return
		}

		var req respondReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		decision := app.Decision(req.Decision)
		if decision != app.DecisionConfirm && decision != app.DecisionReject {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "decision must be confirm or reject")
			return
		}

		res, err := svc.Respond(r.Context(), reservationID, req.UserID, decision)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toReservationResponse(res))
	}
}

type cancelReservationRequest struct {
	OfferID   int64            `json:"offer_id"`
	Requester requesterPayload `json:"requester"`
}

// HandleCancelReservation withdraws the requester's own pending reservation.
func HandleCancelReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cancelReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.Cancel(r.Context(), req.OfferID, req.Requester.toDomain()); err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"cancelled"}`))
	}
}

// HandleGetReservation returns a reservation by id so anonymous requesters
// can poll the status of their request.
func HandleGetReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, ok := pathID(r, "reservationID")
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid reservation id")
			return
		}

		res, err := svc.Get(r.Context(), reservationID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toReservationResponse(res))
	}
}

// HandlePendingReservations lists reservations awaiting the owner's answer.
func HandlePendingReservations(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
		if err != nil || ownerID <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid owner_id")
			return
		}

		pending, err := svc.ListPendingForOwner(r.Context(), ownerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]reservationResponse, 0, len(pending))
		for _, res := range pending {
			resp = append(resp, toReservationResponse(res))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
