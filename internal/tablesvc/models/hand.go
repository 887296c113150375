package models

import (
	"encoding/json"
	"time"
)

// Hand is the summary row of one dealt hand. Board, Pots and Winners stay
// empty until the hand is finished.
type Hand struct {
	ID        int64           `json:"id"`
	TableID   string          `json:"tableId"`
	HandNo    int64           `json:"handNo"`
	Variant   string          `json:"variant"`
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
	Board     []string        `json:"board"`
	Pots      json.RawMessage `json:"pots,omitempty"`
	Winners   json.RawMessage `json:"winners,omitempty"`
}

func (h Hand) Finished() bool { return h.EndedAt != nil }

// Action is immutable once written; ID order is play order.
type Action struct {
	ID     int64           `json:"id"`
	HandID int64           `json:"handId"`
	At     time.Time       `json:"at"`
	UserID *string         `json:"userId,omitempty"`
	Seat   *int            `json:"seat,omitempty"`
	Street *string         `json:"street,omitempty"`
	Action string          `json:"action"`
	Amount *int64          `json:"amount,omitempty"`
	Info   json.RawMessage `json:"info,omitempty"`
}
