package services

import (
	"context"

	"github.com/cropscan/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// Create persists a new user. The role is always forced to FARMER.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Role = types.RoleFarmer
	return s.repo.Create(ctx, user)
}
