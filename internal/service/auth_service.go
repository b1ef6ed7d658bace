package service

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/utils"
)

// AuthService authenticates collaborator systems by API key.
type AuthService struct {
	clientRepo *repository.ClientRepository
}

// NewAuthService constructs a new AuthService.
func NewAuthService(clientRepo *repository.ClientRepository) *AuthService {
	return &AuthService{clientRepo: clientRepo}
}

// CreateClient provisions a collaborator with a fresh API key. The plaintext
// key is returned exactly once; only ops sees it.
func (s *AuthService) CreateClient(name string) (*models.Client, error) {
	apiKey, err := utils.GenerateClientKey()
	if err != nil {
		return nil, err
	}
	client := &models.Client{
		ClientID: "cl_" + uuid.NewString(),
		Name:     name,
		APIKey:   apiKey,
		IsActive: true,
	}
	if err := s.clientRepo.Create(client); err != nil {
		return nil, err
	}
	return client, nil
}

// ValidateAPIKey returns the active client owning the key.
func (s *AuthService) ValidateAPIKey(key string) (*models.Client, error) {
	if key == "" {
		return nil, utils.ErrUnauthenticated
	}
	client, err := s.clientRepo.GetByAPIKey(key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrUnauthenticated
		}
		return nil, err
	}
	if !client.IsActive {
		return nil, utils.ErrPermissionDenied
	}
	return client, nil
}
