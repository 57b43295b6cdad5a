package server

import (
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "fusdpool/native/common"
	"fusdpool/native/liquidity"
)

type errorBody struct {
	Error   string `json:"error"`
	Debit   string `json:"debit,omitempty"`
	Ceiling string `json:"ceiling,omitempty"`
}

// errorStatus maps engine errors to HTTP statuses. Internal failures are
// reported without detail.
func errorStatus(err error) (int, errorBody) {
	var limitErr *liquidity.LimitError
	switch {
	case errors.As(err, &limitErr):
		return http.StatusUnprocessableEntity, errorBody{
			Error:   liquidity.ErrLimitExceeded.Error(),
			Debit:   dec(limitErr.Debit),
			Ceiling: dec(limitErr.Ceiling),
		}
	case errors.Is(err, liquidity.ErrInvalidAmount),
		errors.Is(err, liquidity.ErrInvalidRate),
		errors.Is(err, liquidity.ErrInvalidCursor),
		errors.Is(err, liquidity.ErrInvalidAddress),
		errors.Is(err, liquidity.ErrAmountOverflow):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, liquidity.ErrInsufficientFunds):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, liquidity.ErrClockRegression):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, errorBody{Error: err.Error()}
	case errors.Is(err, liquidity.ErrOracleUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: message})
}
