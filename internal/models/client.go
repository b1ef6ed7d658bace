package models

import "time"

// Client is a collaborator system (booking service, partner dashboard)
// allowed to call the settlement API with an API key.
type Client struct {
	ID        int       `db:"id" json:"id"`
	ClientID  string    `db:"client_id" json:"clientId"`
	Name      string    `db:"name" json:"name"`
	APIKey    string    `db:"api_key" json:"-"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}
