package handler

import (
	"net/http"
	"strconv"
	"strings"

	"tutorhub-portal/internal/audit"
)

type AuditHandler struct {
	sink audit.Sink
}

func NewAuditHandler(sink audit.Sink) *AuditHandler {
	return &AuditHandler{sink: sink}
}

type auditListData struct {
	Items []audit.Entry `json:"items"`
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	items, meta, err := h.sink.Query(r.Context(), audit.Query{
		Action: strings.TrimSpace(query.Get("action")),
		UserID: int64(parseIntOrDefault(query.Get("user_id"), 0)),
		Email:  strings.TrimSpace(query.Get("email")),
		From:   strings.TrimSpace(query.Get("from")),
		To:     strings.TrimSpace(query.Get("to")),
		Page:   parseIntOrDefault(query.Get("page"), 1),
		Limit:  parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, auditListData{Items: items}, &meta)
}

func parseIntOrDefault(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}
