package services

import (
	"context"
	"strings"

	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/models"
)

type UserService struct {
	userRepo models.UserRepo
	hooks    Hooks
}

func NewUserService(userRepo models.UserRepo, hooks Hooks) *UserService {
	return &UserService{
		userRepo: userRepo,
		hooks:    hooks,
	}
}

// CreateUser registers the user on first sign in. Later calls only refresh
// lastLoginAt; created reports which happened. Roles are never self-assigned.
func (us *UserService) CreateUser(ctx context.Context, user *models.User) (*models.User, bool, error) {
	if user == nil {
		return nil, false, apperr.Validation("user is required")
	}
	email, err := requireEmail(user.Email)
	if err != nil {
		return nil, false, err
	}
	user.Email = email
	user.Name = strings.TrimSpace(user.Name)
	user.Role = models.RoleCustomer
	user.Status = models.UserActive

	stored, created, err := us.userRepo.UpsertUser(ctx, user)
	if err != nil {
		return nil, false, apperr.Dependency(err, "failed to create user")
	}
	if created {
		us.hooks.Logger.Info().Str("email", email).Msg("user registered")
		us.hooks.dropAdminStats(ctx)
	}
	return stored, created, nil
}

func (us *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := us.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(err, "user not found", "failed to load user")
	}
	return user, nil
}

func (us *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := us.userRepo.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list users")
	}
	return users, nil
}

func (us *UserService) UpdateUserRole(ctx context.Context, email, role string) (*models.User, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	r := models.Role(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		return nil, apperr.Validation("role must be one of customer, guide, admin")
	}
	user, err := us.userRepo.UpdateUserRole(ctx, email, r)
	if err != nil {
		return nil, storeErr(err, "user not found", "failed to update user role")
	}
	return user, nil
}

func (us *UserService) UpdateUserStatus(ctx context.Context, email, status string) (*models.User, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	st := models.UserStatus(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return nil, apperr.Validation("status must be active or banned")
	}
	user, err := us.userRepo.UpdateUserStatus(ctx, email, st)
	if err != nil {
		return nil, storeErr(err, "user not found", "failed to update user status")
	}
	return user, nil
}
