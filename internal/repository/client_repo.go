package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// ClientRepository handles data access for collaborator API clients.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create inserts a new collaborator client.
func (r *ClientRepository) Create(client *models.Client) error {
	const q = `
		INSERT INTO clients (client_id, name, api_key, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(q, client.ClientID, client.Name, client.APIKey, client.IsActive).
		Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
}

// GetByAPIKey returns the client owning an API key.
func (r *ClientRepository) GetByAPIKey(apiKey string) (*models.Client, error) {
	const q = `SELECT * FROM clients WHERE api_key = $1 LIMIT 1`
	var c models.Client
	if err := r.db.Get(&c, q, apiKey); err != nil {
		return nil, err
	}
	return &c, nil
}
