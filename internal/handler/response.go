package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// sentinels maps session and transport errors to the portal's error codes.
// The messages are the sentinels' own sentences, shown to users as is.
var sentinels = []struct {
	err    error
	status int
	code   string
}{
	{model.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{model.ErrAccountDeactivated, http.StatusForbidden, "ACCOUNT_DEACTIVATED"},
	{model.ErrTutorPendingApproval, http.StatusForbidden, "PENDING_APPROVAL"},
	{model.ErrEmailNotVerified, http.StatusForbidden, "EMAIL_NOT_VERIFIED"},
	{model.ErrSessionExpired, http.StatusUnauthorized, "SESSION_EXPIRED"},
	{model.ErrNotAuthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
	{model.ErrStaleSession, http.StatusConflict, "STALE_SESSION"},
	{model.ErrNetwork, http.StatusBadGateway, "BACKEND_UNAVAILABLE"},
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	matched := false
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			status, body.Code, body.Message = s.status, s.code, s.err.Error()
			matched = true
			break
		}
	}

	switch {
	case matched:
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body.Code = "UPSTREAM_TIMEOUT"
		body.Message = "The server took too long to respond"
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(out); err != nil {
		return apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}
