package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

type GigService struct {
	api Caller
}

func NewGigService(api Caller) *GigService {
	return &GigService{api: api}
}

// List returns gigs, optionally only those owned by tutorID.
func (s *GigService) List(ctx context.Context, tutorID int64) ([]model.Gig, error) {
	q := url.Values{}
	if tutorID > 0 {
		q.Set("tutor_id", strconv.FormatInt(tutorID, 10))
	}
	var gigs []model.Gig
	if err := get(ctx, s.api, withQuery("/gigs/", q), &gigs); err != nil {
		return nil, err
	}
	return gigs, nil
}

func (s *GigService) Get(ctx context.Context, id int64) (model.Gig, error) {
	if err := requireID(id, "gig"); err != nil {
		return model.Gig{}, err
	}
	var gig model.Gig
	err := get(ctx, s.api, itemPath("gigs", id), &gig)
	return gig, err
}

func (s *GigService) Create(ctx context.Context, gig model.Gig) (model.Gig, error) {
	if err := validateGig(gig); err != nil {
		return model.Gig{}, err
	}
	var created model.Gig
	err := send(ctx, s.api, http.MethodPost, "/gigs/", gig, &created)
	return created, err
}

func (s *GigService) Update(ctx context.Context, gig model.Gig) (model.Gig, error) {
	if err := requireID(gig.ID, "gig"); err != nil {
		return model.Gig{}, err
	}
	if err := validateGig(gig); err != nil {
		return model.Gig{}, err
	}
	var updated model.Gig
	err := send(ctx, s.api, http.MethodPut, itemPath("gigs", gig.ID), gig, &updated)
	return updated, err
}

func (s *GigService) Delete(ctx context.Context, id int64) error {
	if err := requireID(id, "gig"); err != nil {
		return err
	}
	return send(ctx, s.api, http.MethodDelete, itemPath("gigs", id), nil, nil)
}

func validateGig(gig model.Gig) error {
	if strings.TrimSpace(gig.Title) == "" {
		return apierror.New("VALIDATION_ERROR", "Gig title is required", "", http.StatusBadRequest)
	}
	if gig.HourlyRate < 0 {
		return apierror.New("VALIDATION_ERROR", "Hourly rate cannot be negative", "", http.StatusBadRequest)
	}
	return nil
}
