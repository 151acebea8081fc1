package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ryft/native/bank"
	nativecommon "ryft/native/common"
	"ryft/native/ryft"
	"ryft/services/ryftd/runtime"
)

type errorResponse struct {
	Error       string `json:"error"`
	Reason      string `json:"reason"`
	Instruction *int   `json:"instruction,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, runtime.ErrEmptyBundle),
		errors.Is(err, runtime.ErrBundleTooLarge),
		errors.Is(err, runtime.ErrUnknownInstruction),
		errors.Is(err, runtime.ErrMissingAccount):
		return http.StatusBadRequest
	case errors.Is(err, ryft.ErrUnauthorized),
		errors.Is(err, ryft.ErrNotWhitelisted),
		errors.Is(err, bank.ErrOwnerMismatch):
		return http.StatusForbidden
	case errors.Is(err, ryft.ErrFlashLoanInProgress),
		errors.Is(err, ryft.ErrStaleState),
		errors.Is(err, runtime.ErrUnsettledFlashLoan),
		errors.Is(err, ryft.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, ryft.ErrInsufficientLiquidity),
		errors.Is(err, ryft.ErrInsufficientStake),
		errors.Is(err, ryft.ErrFlashLoanExpired),
		errors.Is(err, runtime.ErrPoolShortfall),
		errors.Is(err, ryft.ErrNoActiveLoan),
		errors.Is(err, ryft.ErrAllowListFull),
		errors.Is(err, ryft.ErrArithmeticOverflow),
		errors.Is(err, ryft.ErrArithmeticUnderflow),
		errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, bank.ErrAccountNotFound),
		errors.Is(err, bank.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, ryft.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Reason: runtime.Reason(err)}
	if errors.Is(err, errBadRequest) {
		resp.Reason = "bad_request"
	}
	var insErr *runtime.InstructionError
	if errors.As(err, &insErr) {
		idx := insErr.Index
		resp.Instruction = &idx
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("error", err.Error()))
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
