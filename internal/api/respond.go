package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"launch-curve-engine/internal/launch"
	"launch-curve-engine/internal/ledger"
	"launch-curve-engine/internal/storage"
	"launch-curve-engine/internal/token"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string   `json:"error"`   // machine-readable reason
	Message string   `json:"message"` // human-readable detail
	Reasons []string `json:"reasons,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, errorBody{Error: reason, Message: message})
}

// writeDomainError maps a service error onto a status code and a typed
// reason clients can branch on.
func writeDomainError(w http.ResponseWriter, err error) {
	var tnm *launch.ThresholdsNotMetError
	if errors.As(err, &tnm) {
		writeJSON(w, http.StatusConflict, errorBody{
			Error:   "thresholds_not_met",
			Message: err.Error(),
			Reasons: tnm.Reasons,
		})
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "owner_has_curve", err.Error())
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, ledger.ErrCurveFrozen):
		writeError(w, http.StatusConflict, "curve_frozen", err.Error())
	case errors.Is(err, ledger.ErrSlippageExceeded):
		writeError(w, http.StatusConflict, "slippage_exceeded", err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance", err.Error())
	case errors.Is(err, ledger.ErrCurveBusy):
		writeError(w, http.StatusServiceUnavailable, "curve_busy", err.Error())
	case errors.Is(err, ledger.ErrSelfReferral):
		writeError(w, http.StatusBadRequest, "self_referral", err.Error())
	case errors.Is(err, launch.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, launch.ErrAlreadyLaunched):
		writeError(w, http.StatusConflict, "already_launched", err.Error())
	case errors.Is(err, launch.ErrCurveNotFrozen):
		writeError(w, http.StatusConflict, "curve_not_frozen", err.Error())
	case errors.Is(err, launch.ErrNoHolders):
		writeError(w, http.StatusConflict, "no_holders", err.Error())
	case errors.Is(err, launch.ErrTransfersIncomplete):
		writeError(w, http.StatusConflict, "transfers_incomplete", err.Error())
	case errors.Is(err, token.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
	default:
		log.Printf("[api] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
