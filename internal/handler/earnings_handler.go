package handler

import (
	"net/http"
	"strconv"

	"tutorhub-portal/internal/earnings"
	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/service"
	"tutorhub-portal/pkg/apierror"
)

type EarningsHandler struct{}

func NewEarningsHandler() *EarningsHandler {
	return &EarningsHandler{}
}

// Summary reports verified hours and pay for the logged-in tutor. Staff may
// ask about any tutor with ?tutor_id=.
func (h *EarningsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	mgr, _, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}

	period, err := earnings.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}

	var tutorID int64
	if mgr.IsTutor() {
		tutorID, _ = mgr.TutorID()
	}
	if raw := r.URL.Query().Get("tutor_id"); raw != "" {
		if mgr.IsTutor() {
			writeError(w, apierror.New("FORBIDDEN", "Tutors can only view their own earnings", "", http.StatusForbidden))
			return
		}
		tutorID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || tutorID <= 0 {
			writeError(w, apierror.New("BAD_REQUEST", "invalid tutor_id", raw, http.StatusBadRequest))
			return
		}
	}

	api := mgr.API()
	verified := true
	sessions, err := service.NewSessionService(api).List(r.Context(), service.SessionFilter{TutorID: tutorID, Verified: &verified})
	if err != nil {
		writeError(w, err)
		return
	}
	gigs, err := service.NewGigService(api).List(r.Context(), tutorID)
	if err != nil {
		writeError(w, err)
		return
	}

	state := mgr.State()
	rate := earnings.FallbackRate(state.Tutor, state.TutorProfile)
	writeSuccess(w, http.StatusOK, earnings.Summarize(sessions, gigs, period, rate), nil)
}
