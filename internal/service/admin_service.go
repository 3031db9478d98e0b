package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tax_analysis/internal/cache"
	"tax_analysis/internal/model"
	"tax_analysis/internal/repository"
)

var ErrCannotDeleteSelf = errors.New("admins cannot delete their own account")

// AdminService backs the admin endpoints
type AdminService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, actorID, userID int) error
}

type adminService struct {
	userRepo   repository.UserRepository
	statsCache cache.StatsCache
}

func NewAdminService(userRepo repository.UserRepository, statsCache cache.StatsCache) AdminService {
	return &adminService{userRepo: userRepo, statsCache: statsCache}
}

func (s *adminService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.List(ctx)
}

// DeleteUser removes an account together with its uploads and scored rows.
// Stored files are left in place.
func (s *adminService) DeleteUser(ctx context.Context, actorID, userID int) error {
	if actorID == userID {
		return ErrCannotDeleteSelf
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	log.Printf("INFO: admin %d deleted user %d", actorID, userID)
	invalidateStats(ctx, s.statsCache)
	return nil
}
