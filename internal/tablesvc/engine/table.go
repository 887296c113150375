package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTable = errors.New("invalid table")

// Table is the live table the rules engine hands over for persistence.
type Table struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"ownerId"`
	Name         string       `json:"name"`
	Variant      string       `json:"variant"`
	MaxSeats     int          `json:"maxSeats"`
	Speed        string       `json:"speed,omitempty"`
	StraddleMode string       `json:"straddleMode,omitempty"`
	BlindLevels  []BlindLevel `json:"blindLevels"`
	HandNo       int64        `json:"handNo"`
	Version      int64        `json:"version"` // version the caller last read, 0 for a new table
	State        State        `json:"state"`
	Deck         []string     `json:"deck"`
	Burns        []string     `json:"burns"`
	Discards     []string     `json:"discards"`
	Players      []*Player    `json:"players"`
}

type BlindLevel struct {
	Small   int64 `json:"small"`
	Big     int64 `json:"big"`
	Ante    int64 `json:"ante,omitempty"`
	Minutes int   `json:"minutes,omitempty"`
}

type Pot struct {
	Amount   int64 `json:"amount"`
	Eligible []int `json:"eligible,omitempty"` // seats that can win this pot
}

type State struct {
	Board         []string `json:"board"`
	Pots          []Pot    `json:"pots"`
	DealerSeat    int      `json:"dealerSeat"`
	ToAct         *int     `json:"toAct"`
	Phase         string   `json:"phase"`
	Round         string   `json:"round"`
	ToCall        int64    `json:"toCall"`
	MinRaise      int64    `json:"minRaise"`
	TimerDeadline *int64   `json:"timerDeadline"` // unix millis
	DrawPending   bool     `json:"drawPending"`
	CurrentSeat   *int     `json:"currentSeat"`

	// LastActionAt drives the live action timer only.
	LastActionAt time.Time `json:"-"`
}

// PotTotal sums every pot.
func (s State) PotTotal() int64 {
	var total int64
	for _, p := range s.Pots {
		total += p.Amount
	}
	return total
}

type Player struct {
	UserID         string   `json:"userId"`
	Seat           int      `json:"seat"`
	Sitting        bool     `json:"sitting"`
	Stack          int64    `json:"stack"`
	Folded         bool     `json:"folded"`
	AllIn          bool     `json:"allIn"`
	RoundCommitted int64    `json:"roundCommitted"`
	TotalCommitted int64    `json:"totalCommitted"`
	Timebanks      *int     `json:"timebanks,omitempty"`
	Cards          []string `json:"cards"`

	// Connected reflects the live socket and is owned by the transport.
	Connected bool `json:"-"`
}

// HandEvent is one action the engine reports while a hand is in progress.
// Optional fields stay nil when the engine does not supply them.
type HandEvent struct {
	UserID *string         `json:"userId,omitempty"`
	Seat   *int            `json:"seat,omitempty"`
	Street *string         `json:"street,omitempty"`
	Action string          `json:"action"`
	Amount *int64          `json:"amount,omitempty"`
	Info   json.RawMessage `json:"info,omitempty"`
}

func (e HandEvent) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: hand event without action", ErrInvalidTable)
	}
	if len(e.Info) > 0 && !json.Valid(e.Info) {
		return fmt.Errorf("%w: hand event info is not valid json", ErrInvalidTable)
	}
	return nil
}

// Validate checks the identity fields storage relies on.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidTable)
	}
	if t.ID == "" {
		return fmt.Errorf("%w: missing table id", ErrInvalidTable)
	}
	if t.Version < 0 {
		return fmt.Errorf("%w: negative version %d", ErrInvalidTable, t.Version)
	}
	seen := make(map[string]struct{}, len(t.Players))
	for _, p := range t.Players {
		if p == nil || p.UserID == "" {
			return fmt.Errorf("%w: table %s has a player without user id", ErrInvalidTable, t.ID)
		}
		if _, dup := seen[p.UserID]; dup {
			return fmt.Errorf("%w: table %s lists user %s twice", ErrInvalidTable, t.ID, p.UserID)
		}
		seen[p.UserID] = struct{}{}
		if p.Seat < 0 || (t.MaxSeats > 0 && p.Seat >= t.MaxSeats) {
			return fmt.Errorf("%w: user %s seat %d out of range", ErrInvalidTable, p.UserID, p.Seat)
		}
	}
	return nil
}
