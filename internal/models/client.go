package models

import (
	"strings"
	"time"
)

type Client struct {
	ID          int64     `json:"id" db:"id"`
	CivilID     string    `json:"civil_id" db:"civil_id"`
	Name        string    `json:"name" db:"name"`
	Gender      string    `json:"gender,omitempty" db:"gender"`
	Age         int       `json:"age,omitempty" db:"age"`
	Address     string    `json:"address,omitempty" db:"address"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Status      bool      `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Normalize canonicalizes identity fields before create or update.
func (c *Client) Normalize() {
	c.CivilID = strings.ToLower(strings.TrimSpace(c.CivilID))
}
