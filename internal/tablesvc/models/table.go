package models

import (
	"time"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/snapshot"
)

const (
	DefaultSpeed     = "SLOW"
	DefaultTimebanks = 3
)

type Table struct {
	ID           string              `json:"id"`
	OwnerID      string              `json:"ownerId"`
	Name         string              `json:"name"`
	Variant      string              `json:"variant"`
	MaxSeats     int                 `json:"maxSeats"`
	Speed        string              `json:"speed"`
	StraddleMode *string             `json:"straddleMode"`
	BlindLevels  []engine.BlindLevel `json:"blindLevels"`
	HandNo       int64               `json:"handNo"`
	State        snapshot.State      `json:"state"`
	Version      int64               `json:"version"` // bumped on every successful save
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	Players      []Player            `json:"players"`
}

// Player is one seated user, keyed by (TableID, UserID).
type Player struct {
	TableID        string    `json:"tableId"`
	UserID         string    `json:"userId"`
	Seat           int       `json:"seat"`
	Sitting        bool      `json:"sitting"`
	Stack          int64     `json:"stack"`
	Folded         bool      `json:"folded"`
	AllIn          bool      `json:"allIn"`
	RoundCommitted int64     `json:"roundCommitted"`
	TotalCommitted int64     `json:"totalCommitted"`
	Timebanks      int       `json:"timebanks"`
	Cards          []string  `json:"cards"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
