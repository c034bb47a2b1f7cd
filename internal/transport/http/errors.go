package http

import (
	"encoding/json"
	"net/http"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

const (
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidWindow       = "invalid_window"
	codeInvalidAmount       = "invalid_amount"
	codeInvalidRate         = "invalid_rate"
	codeInvalidDirection    = "invalid_direction"
	codeContactRequired     = "contact_required"
	codeOfficeRequired      = "office_required"
	codeOfferNotFound       = "offer_not_found"
	codeOfferNotActive      = "offer_not_active"
	codeSlotNotFound        = "slot_not_found"
	codeSlotUnavailable     = "slot_unavailable"
	codeSelfReservation     = "self_reservation"
	codeNotOfferOwner       = "not_offer_owner"
	codeReservationNotFound = "reservation_not_found"
	codeAlreadyResolved     = "already_resolved"
	codeReservationExpired  = "reservation_expired"
	codeUserNotFound        = "user_not_found"
	codeUserBlocked         = "user_blocked"
	codeEmailTaken          = "email_taken"
	codeForbidden           = "forbidden"
	codeRateUnavailable     = "rate_unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service errors to HTTP status codes. Anything
// unrecognized is reported as an internal error without leaking details.
func writeDomainError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidWindow:
		writeError(w, http.StatusBadRequest, codeInvalidWindow, err.Error())
	case domain.ErrInvalidAmount:
		writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
	case domain.ErrInvalidRate:
		writeError(w, http.StatusBadRequest, codeInvalidRate, err.Error())
	case domain.ErrInvalidDirection:
		writeError(w, http.StatusBadRequest, codeInvalidDirection, err.Error())
	case domain.ErrContactRequired:
		writeError(w, http.StatusBadRequest, codeContactRequired, err.Error())
	case domain.ErrOfficeRequired:
		writeError(w, http.StatusBadRequest, codeOfficeRequired, err.Error())
	case domain.ErrOfferNotFound:
		writeError(w, http.StatusNotFound, codeOfferNotFound, err.Error())
	case domain.ErrSlotNotFound:
		writeError(w, http.StatusNotFound, codeSlotNotFound, err.Error())
	case domain.ErrReservationNotFound:
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case domain.ErrUserNotFound:
		writeError(w, http.StatusNotFound, codeUserNotFound, err.Error())
	case domain.ErrOfferNotActive:
		writeError(w, http.StatusConflict, codeOfferNotActive, err.Error())
	case domain.ErrSlotUnavailable:
		writeError(w, http.StatusConflict, codeSlotUnavailable, err.Error())
	case domain.ErrAlreadyResolved:
		writeError(w, http.StatusConflict, codeAlreadyResolved, err.Error())
	case domain.ErrReservationExpired:
		writeError(w, http.StatusConflict, codeReservationExpired, err.Error())
	case domain.ErrEmailTaken:
		writeError(w, http.StatusConflict, codeEmailTaken, err.Error())
	case domain.ErrSelfReservation:
		writeError(w, http.StatusForbidden, codeSelfReservation, err.Error())
	case domain.ErrNotOfferOwner:
		writeError(w, http.StatusForbidden, codeNotOfferOwner, err.Error())
	case domain.ErrUserBlocked:
		writeError(w, http.StatusForbidden, codeUserBlocked, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
