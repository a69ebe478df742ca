package devapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

var (
	errMeetingNotStarted = apierror.New("CONFLICT", "Meeting has not started", "", http.StatusConflict)
	errNoExtensionsLeft  = apierror.New("CONFLICT", "No extensions left for this meeting", "", http.StatusConflict)
	errNotFound          = apierror.New("NOT_FOUND", "Not found.", "", http.StatusNotFound)
	errForbidden         = apierror.New("FORBIDDEN", "You do not have permission to perform this action.", "", http.StatusForbidden)
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers the way the real backend does: auth failures as
// {"detail"}, everything else as {"error"}.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if !errors.As(err, &apiErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	switch apiErr.HTTPStatus {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		writeJSON(w, apiErr.HTTPStatus, map[string]string{"detail": apiErr.Message, "code": apiErr.Code})
	default:
		writeJSON(w, apiErr.HTTPStatus, map[string]string{"error": apiErr.Message})
	}
}

func badRequest(message string) error {
	return apierror.New("BAD_REQUEST", message, "", http.StatusBadRequest)
}

func decode(r *http.Request, out any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out); err != nil {
		return badRequest("Invalid JSON body")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errNotFound
	}
	return id, nil
}

// caller is the authenticated account behind the request.
func (s *Server) caller(r *http.Request) (account, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return account{}, false
	}
	return s.data.account(claims.UserID)
}

func isStaff(a account) bool {
	switch a.UserType {
	case model.UserTypeAdmin, model.UserTypeManager, model.UserTypeStaff:
		return true
	}
	return false
}

// ownTutor limits tutors to their own records. Staff see everything (0).
// A tutor account with no tutor record sees nothing (-1).
func ownTutor(a account) int64 {
	if isStaff(a) {
		return 0
	}
	if a.tutorID == 0 {
		return -1
	}
	return a.tutorID
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, badRequest("Email and password are required"))
		return
	}

	resp, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.auth.Logout(req.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Successfully logged out."})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, badRequest("refresh_token is required"))
		return
	}

	resp, err := s.auth.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	a, ok := s.caller(r)
	if !ok {
		writeError(w, errTokenNotValid)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": a.User})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	a, ok := s.caller(r)
	if !ok {
		writeError(w, errTokenNotValid)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": a.User, "tutor": s.data.tutorFor(a)})
}

func (s *Server) listGigs(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	tutorID := ownTutor(a)
	if tutorID == 0 {
		tutorID, _ = strconv.ParseInt(r.URL.Query().Get("tutor_id"), 10, 64)
	}
	writeJSON(w, http.StatusOK, s.data.gigList(tutorID))
}

func (s *Server) getGig(w http.ResponseWriter, r *http.Request) {
	g, err := s.ownedGig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) createGig(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	var g model.Gig
	if err := decode(r, &g); err != nil {
		writeError(w, err)
		return
	}

	switch own := ownTutor(a); {
	case own < 0:
		writeError(w, errForbidden)
		return
	case own > 0:
		g.TutorID = own
	}
	if err := s.validateGig(g); err != nil {
		writeError(w, err)
		return
	}

	g.ID = 0
	writeJSON(w, http.StatusCreated, s.data.saveGig(g))
}

func (s *Server) updateGig(w http.ResponseWriter, r *http.Request) {
	existing, err := s.ownedGig(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var g model.Gig
	if err := decode(r, &g); err != nil {
		writeError(w, err)
		return
	}
	g.ID = existing.ID
	g.TutorID = existing.TutorID
	if err := s.validateGig(g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.data.saveGig(g))
}

func (s *Server) deleteGig(w http.ResponseWriter, r *http.Request) {
	g, err := s.ownedGig(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.data.deleteGig(g.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ownedGig(r *http.Request) (model.Gig, error) {
	id, err := idParam(r)
	if err != nil {
		return model.Gig{}, err
	}
	g, ok := s.data.gig(id)
	if !ok {
		return model.Gig{}, errNotFound
	}
	a, _ := s.caller(r)
	if own := ownTutor(a); own != 0 && g.TutorID != own {
		return model.Gig{}, errNotFound
	}
	return g, nil
}

func (s *Server) validateGig(g model.Gig) error {
	if strings.TrimSpace(g.Title) == "" {
		return badRequest("Gig title is required")
	}
	if g.HourlyRate <= 0 {
		return badRequest("Hourly rate must be positive")
	}
	if _, ok := s.data.tutor(g.TutorID); !ok {
		return badRequest("Unknown tutor")
	}
	return nil
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	q := sessionQuery{tutorID: ownTutor(a)}
	if q.tutorID == 0 {
		q.tutorID, _ = strconv.ParseInt(r.URL.Query().Get("tutor_id"), 10, 64)
	}
	if raw := r.URL.Query().Get("is_verified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, badRequest("is_verified must be true or false"))
			return
		}
		q.verified = &v
	}
	writeJSON(w, http.StatusOK, s.data.sessionList(q))
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GigID int64     `json:"gig_id"`
		Date  time.Time `json:"date"`
		Hours float64   `json:"hours"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Hours <= 0 {
		writeError(w, badRequest("Hours must be positive"))
		return
	}
	if req.Date.IsZero() {
		writeError(w, badRequest("Date is required"))
		return
	}

	g, ok := s.data.gig(req.GigID)
	a, _ := s.caller(r)
	if !ok || (ownTutor(a) != 0 && g.TutorID != ownTutor(a)) {
		writeError(w, badRequest("Unknown gig"))
		return
	}

	created := s.data.addSession(model.TutoringSession{GigID: g.ID, TutorID: g.TutorID, Date: req.Date.UTC(), Hours: req.Hours})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) verifySession(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	verified, ok := s.data.verifySession(id)
	if !ok {
		writeError(w, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, verified)
}

func (s *Server) ownedSession(r *http.Request) (model.TutoringSession, error) {
	id, err := idParam(r)
	if err != nil {
		return model.TutoringSession{}, err
	}
	ts, ok := s.data.session(id)
	if !ok {
		return model.TutoringSession{}, errNotFound
	}
	a, _ := s.caller(r)
	if own := ownTutor(a); own != 0 && ts.TutorID != own {
		return model.TutoringSession{}, errNotFound
	}
	return ts, nil
}

func (s *Server) meeting(w http.ResponseWriter, r *http.Request) {
	ts, err := s.ownedSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if ts.Status == model.SessionStatusCancelled {
		writeError(w, apierror.New("CONFLICT", "Session was cancelled", "", http.StatusConflict))
		return
	}
	writeJSON(w, http.StatusOK, s.data.meeting(ts, s.now(), s.maxExtensions))
}

func (s *Server) extendMeeting(w http.ResponseWriter, r *http.Request) {
	ts, err := s.ownedSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req model.ExtendMeetingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Minutes <= 0 || req.Minutes > 60 {
		writeError(w, badRequest("Minutes must be between 1 and 60"))
		return
	}

	m, err := s.data.extendMeeting(ts.ID, req.Minutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) listTutors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.tutorList())
}

func (s *Server) getTutor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	t, ok := s.data.tutor(id)
	if !ok {
		writeError(w, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.users())
}

func (s *Server) approveUser(w http.ResponseWriter, r *http.Request) {
	s.editUser(w, r, func(u *model.User) error {
		if u.UserType != model.UserTypeTutor {
			return badRequest("Only tutors need approval")
		}
		u.IsApproved = true
		return nil
	})
}

func (s *Server) patchUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.IsActive == nil {
		writeError(w, badRequest("Nothing to update"))
		return
	}
	s.editUser(w, r, func(u *model.User) error {
		u.IsActive = *req.IsActive
		return nil
	})
}

func (s *Server) editUser(w http.ResponseWriter, r *http.Request, fn func(*model.User) error) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var fnErr error
	updated, ok := s.data.updateUser(id, func(u *model.User) { fnErr = fn(u) })
	switch {
	case !ok:
		writeError(w, errNotFound)
	case fnErr != nil:
		writeError(w, fnErr)
	default:
		writeJSON(w, http.StatusOK, updated)
	}
}
