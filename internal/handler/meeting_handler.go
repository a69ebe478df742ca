package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tutorhub-portal/internal/meeting"
	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/service"
	"tutorhub-portal/pkg/apierror"
)

type MeetingHandler struct {
	tracker *meeting.Tracker
}

func NewMeetingHandler(tracker *meeting.Tracker) *MeetingHandler {
	return &MeetingHandler{tracker: tracker}
}

// Start fetches the session's meeting room and starts its countdown.
func (h *MeetingHandler) Start(w http.ResponseWriter, r *http.Request) {
	mgr, scope, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}
	id, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sessions := service.NewSessionService(mgr.API())
	m, err := sessions.Meeting(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if m.SessionID == 0 {
		m.SessionID = id
	}

	c := h.tracker.Start(scope, m, sessions)
	writeSuccess(w, http.StatusOK, map[string]any{"meeting": m, "countdown": c.Status()}, nil)
}

func (h *MeetingHandler) Status(w http.ResponseWriter, r *http.Request) {
	c, ok := h.countdown(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, c.Status(), nil)
}

func (h *MeetingHandler) Extend(w http.ResponseWriter, r *http.Request) {
	c, ok := h.countdown(w, r)
	if !ok {
		return
	}

	var payload model.ExtendMeetingRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.Minutes <= 0 {
		writeError(w, apierror.New("BAD_REQUEST", "minutes must be positive", "", http.StatusBadRequest))
		return
	}

	status, err := c.Extend(r.Context(), payload.Minutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, status, nil)
}

func (h *MeetingHandler) countdown(w http.ResponseWriter, r *http.Request) (*meeting.Countdown, bool) {
	_, scope, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return nil, false
	}
	id, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	c, ok := h.tracker.Get(scope, id)
	if !ok {
		writeError(w, apierror.New("NOT_FOUND", "No meeting running for this session", strconv.FormatInt(id, 10), http.StatusNotFound))
		return nil, false
	}
	return c, true
}

func sessionIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "sessionID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.New("BAD_REQUEST", "invalid session id", raw, http.StatusBadRequest)
	}
	return id, nil
}
