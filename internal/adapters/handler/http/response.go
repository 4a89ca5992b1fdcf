package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrInvalidReward):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrServerNotEligible):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrServerNotFound),
		errors.Is(err, domain.ErrVoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCooldownActive),
		errors.Is(err, domain.ErrVoteAlreadyClaimed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, errorMessage(err), statusFor(err))
}

func errorMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		return domain.ErrInternal.Error()
	}
	return err.Error()
}

type agentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeAgentError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), agentResponse{Success: false, Message: errorMessage(err)})
}
