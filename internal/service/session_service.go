package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

// SessionService manages booked tutoring sessions, not login sessions.
type SessionService struct {
	api Caller
}

func NewSessionService(api Caller) *SessionService {
	return &SessionService{api: api}
}

type SessionFilter struct {
	TutorID  int64
	Verified *bool
}

func (f SessionFilter) query() url.Values {
	q := url.Values{}
	if f.TutorID > 0 {
		q.Set("tutor_id", strconv.FormatInt(f.TutorID, 10))
	}
	if f.Verified != nil {
		q.Set("is_verified", strconv.FormatBool(*f.Verified))
	}
	return q
}

func (s *SessionService) List(ctx context.Context, filter SessionFilter) ([]model.TutoringSession, error) {
	var sessions []model.TutoringSession
	if err := get(ctx, s.api, withQuery("/sessions/", filter.query()), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionService) Create(ctx context.Context, ts model.TutoringSession) (model.TutoringSession, error) {
	if err := requireID(ts.GigID, "gig"); err != nil {
		return model.TutoringSession{}, err
	}
	if ts.Hours <= 0 {
		return model.TutoringSession{}, apierror.New("VALIDATION_ERROR", "Session hours must be positive", "", http.StatusBadRequest)
	}
	var created model.TutoringSession
	err := send(ctx, s.api, http.MethodPost, "/sessions/", ts, &created)
	return created, err
}

// Verify marks a completed session so its hours count towards earnings.
func (s *SessionService) Verify(ctx context.Context, id int64) (model.TutoringSession, error) {
	if err := requireID(id, "session"); err != nil {
		return model.TutoringSession{}, err
	}
	var verified model.TutoringSession
	err := send(ctx, s.api, http.MethodPost, itemPath("sessions", id, "verify"), nil, &verified)
	return verified, err
}

// Meeting returns the video room for session id.
func (s *SessionService) Meeting(ctx context.Context, id int64) (model.Meeting, error) {
	if err := requireID(id, "session"); err != nil {
		return model.Meeting{}, err
	}
	var m model.Meeting
	err := get(ctx, s.api, itemPath("sessions", id, "meeting"), &m)
	return m, err
}

// Extend adds minutes to the session's meeting and returns the new deadline.
func (s *SessionService) Extend(ctx context.Context, id int64, minutes int) (model.Meeting, error) {
	if err := requireID(id, "session"); err != nil {
		return model.Meeting{}, err
	}
	if minutes <= 0 {
		return model.Meeting{}, apierror.New("VALIDATION_ERROR", "Extension must be at least one minute", "", http.StatusBadRequest)
	}
	var m model.Meeting
	err := send(ctx, s.api, http.MethodPost, itemPath("sessions", id, "extend"), model.ExtendMeetingRequest{Minutes: minutes}, &m)
	return m, err
}
