package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tutorhub-portal/internal/client"
	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

const maxProxyBody = 10 << 20

// ProxyHandler forwards /portal/api/* to the backend with the visitor's
// tokens, refreshing them when needed. Backend replies, error replies
// included, pass through with their status and body untouched. Failures the
// portal itself detects (expired session, unreachable backend) use the
// portal envelope.
type ProxyHandler struct{}

func NewProxyHandler() *ProxyHandler {
	return &ProxyHandler{}
}

func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	mgr, _, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}

	path := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if strings.Contains(path, "..") {
		writeError(w, apierror.New("BAD_REQUEST", "invalid path", path, http.StatusBadRequest))
		return
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	defer r.Body.Close()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
	if err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "request body too large", "", http.StatusRequestEntityTooLarge))
		return
	}

	var body any
	if len(bytes.TrimSpace(raw)) > 0 {
		if !json.Valid(raw) {
			writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
			return
		}
		body = json.RawMessage(raw)
	}

	res := mgr.API().Execute(r.Context(), path, client.RequestOptions{Method: r.Method, Body: body})
	if res.Err != nil {
		var apiErr *apierror.APIError
		if res.Kind == client.KindFailed && errors.As(res.Err, &apiErr) && json.Valid(res.Body) {
			writeRaw(w, res.Status, res.Body)
			return
		}
		writeError(w, res.Err)
		return
	}

	writeRaw(w, res.Status, res.Body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	if status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
