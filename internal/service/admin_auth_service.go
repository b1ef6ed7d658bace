package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/utils"
)

// AdminAuthService authenticates operations users for the admin surface.
type AdminAuthService struct {
	adminRepo *repository.AdminUserRepository
}

// NewAdminAuthService constructs an AdminAuthService.
func NewAdminAuthService(adminRepo *repository.AdminUserRepository) *AdminAuthService {
	return &AdminAuthService{adminRepo: adminRepo}
}

// Login verifies credentials and returns a signed admin JWT.
func (s *AdminAuthService) Login(email, password string) (string, error) {
	user, err := s.adminRepo.GetByEmail(email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("email", email).Msg("failed to load admin user")
		}
		return "", fmt.Errorf("invalid credentials: %w", utils.ErrUnauthenticated)
	}
	if !user.IsActive {
		log.Warn().Str("email", email).Msg("inactive admin account login attempt")
		return "", fmt.Errorf("account is inactive: %w", utils.ErrPermissionDenied)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials: %w", utils.ErrUnauthenticated)
	}

	token, err := utils.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return "", err
	}
	log.Info().Str("email", email).Msg("admin login successful")
	return token, nil
}

// CreateAdmin registers an operations user with a bcrypt password hash.
func (s *AdminAuthService) CreateAdmin(email, password, name string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.adminRepo.Create(&models.AdminUser{
		Email:        email,
		PasswordHash: string(hashed),
		Name:         name,
		IsActive:     true,
	})
}
