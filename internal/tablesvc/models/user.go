package models

import (
	"time"
)

// User represents the users table in the database.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Chips     int64     `json:"chips"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
