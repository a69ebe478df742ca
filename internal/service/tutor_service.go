package service

import (
	"context"
	"net/url"
	"strconv"

	"tutorhub-portal/internal/model"
)

type TutorService struct {
	api Caller
}

func NewTutorService(api Caller) *TutorService {
	return &TutorService{api: api}
}

func (s *TutorService) List(ctx context.Context) ([]model.TutorProfile, error) {
	var tutors []model.TutorProfile
	if err := get(ctx, s.api, "/tutors/", &tutors); err != nil {
		return nil, err
	}
	return tutors, nil
}

func (s *TutorService) Get(ctx context.Context, id int64) (model.TutorProfile, error) {
	if err := requireID(id, "tutor"); err != nil {
		return model.TutorProfile{}, err
	}
	var tutor model.TutorProfile
	err := get(ctx, s.api, itemPath("tutors", id), &tutor)
	return tutor, err
}

// Sessions lists the tutoring sessions booked with tutor id.
func (s *TutorService) Sessions(ctx context.Context, id int64) ([]model.TutoringSession, error) {
	if err := requireID(id, "tutor"); err != nil {
		return nil, err
	}
	q := url.Values{"tutor_id": {strconv.FormatInt(id, 10)}}
	var sessions []model.TutoringSession
	if err := get(ctx, s.api, withQuery("/sessions/", q), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
