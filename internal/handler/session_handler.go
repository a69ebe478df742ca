package handler

import (
	"net/http"

	"tutorhub-portal/internal/meeting"
	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/session"
	"tutorhub-portal/pkg/apierror"
)

type SessionHandler struct {
	meetings *meeting.Tracker
}

func NewSessionHandler(meetings *meeting.Tracker) *SessionHandler {
	return &SessionHandler{meetings: meetings}
}

// SessionView is what the browser sees of its session.
type SessionView struct {
	session.State
	IsAdmin          bool   `json:"is_admin"`
	IsTutor          bool   `json:"is_tutor"`
	IsManager        bool   `json:"is_manager"`
	IsStaff          bool   `json:"is_staff"`
	TutorID          int64  `json:"tutor_id,omitempty"`
	FormattedTutorID string `json:"formatted_tutor_id,omitempty"`
}

func viewOf(mgr *session.Manager) SessionView {
	v := SessionView{
		State:     mgr.State(),
		IsAdmin:   mgr.IsAdmin(),
		IsTutor:   mgr.IsTutor(),
		IsManager: mgr.IsManager(),
		IsStaff:   mgr.IsStaff(),
	}
	if v.IsTutor {
		v.TutorID, _ = mgr.TutorID()
		v.FormattedTutorID = mgr.FormattedTutorID()
	}
	return v
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	mgr, _, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}
	writeSuccess(w, http.StatusOK, viewOf(mgr), nil)
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	mgr, _, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}

	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest))
		return
	}

	if _, err := mgr.Login(r.Context(), payload.Email, payload.Password); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, viewOf(mgr), nil)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	mgr, scope, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}

	h.meetings.StopScope(scope)
	mgr.Logout(r.Context())
	writeSuccess(w, http.StatusOK, viewOf(mgr), nil)
}
