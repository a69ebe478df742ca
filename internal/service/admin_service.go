package service

import (
	"context"
	"net/http"

	"tutorhub-portal/internal/model"
)

type AdminService struct {
	api Caller
}

func NewAdminService(api Caller) *AdminService {
	return &AdminService{api: api}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := get(ctx, s.api, "/admin/users/", &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *AdminService) ApproveTutor(ctx context.Context, userID int64) (model.User, error) {
	if err := requireID(userID, "user"); err != nil {
		return model.User{}, err
	}
	var user model.User
	err := send(ctx, s.api, http.MethodPost, itemPath("admin/users", userID, "approve"), nil, &user)
	return user, err
}

func (s *AdminService) SetActive(ctx context.Context, userID int64, active bool) (model.User, error) {
	if err := requireID(userID, "user"); err != nil {
		return model.User{}, err
	}
	var user model.User
	err := send(ctx, s.api, http.MethodPatch, itemPath("admin/users", userID), map[string]bool{"is_active": active}, &user)
	return user, err
}
