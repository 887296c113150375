package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// chips accepts any JSON number and truncates it toward zero.
type chips int64

func (c *chips) UnmarshalJSON(b []byte) error {
	raw := string(bytes.TrimSpace(b))
	if raw == "null" {
		*c = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*c = chips(n)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("chip amount %s is not a number", raw)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return fmt.Errorf("chip amount %s is out of range", raw)
	}
	*c = chips(math.Trunc(f))
	return nil
}

func (c *chips) ptr() *int64 {
	if c == nil {
		return nil
	}
	v := int64(*c)
	return &v
}

// flag accepts true/false, 0/1 and null.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	switch raw := string(bytes.TrimSpace(b)); raw {
	case "true":
		*f = true
	case "false", "null", `""`:
		*f = false
	default:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("flag %s is not a boolean", raw)
		}
		*f = n != 0
	}
	return nil
}

type wirePot struct {
	Amount   chips `json:"amount"`
	Eligible []int `json:"eligible"`
}

type wireLevel struct {
	Small   chips `json:"small"`
	Big     chips `json:"big"`
	Ante    chips `json:"ante"`
	Minutes int   `json:"minutes"`
}

type wireState struct {
	Board         []string  `json:"board"`
	Pots          []wirePot `json:"pots"`
	DealerSeat    int       `json:"dealerSeat"`
	ToAct         *int      `json:"toAct"`
	Phase         string    `json:"phase"`
	Round         string    `json:"round"`
	ToCall        chips     `json:"toCall"`
	MinRaise      chips     `json:"minRaise"`
	TimerDeadline *chips    `json:"timerDeadline"`
	DrawPending   flag      `json:"drawPending"`
	CurrentSeat   *int      `json:"currentSeat"`
}

type wirePlayer struct {
	UserID         string   `json:"userId"`
	Seat           int      `json:"seat"`
	Sitting        flag     `json:"sitting"`
	Stack          chips    `json:"stack"`
	Folded         flag     `json:"folded"`
	AllIn          flag     `json:"allIn"`
	RoundCommitted chips    `json:"roundCommitted"`
	TotalCommitted chips    `json:"totalCommitted"`
	Timebanks      *chips   `json:"timebanks"`
	Cards          []string `json:"cards"`
}

type wireTable struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"ownerId"`
	Name         string        `json:"name"`
	Variant      string        `json:"variant"`
	MaxSeats     int           `json:"maxSeats"`
	Speed        string        `json:"speed"`
	StraddleMode string        `json:"straddleMode"`
	BlindLevels  []wireLevel   `json:"blindLevels"`
	HandNo       chips         `json:"handNo"`
	Version      int64         `json:"version"`
	State        wireState     `json:"state"`
	Deck         []string      `json:"deck"`
	Burns        []string      `json:"burns"`
	Discards     []string      `json:"discards"`
	Players      []*wirePlayer `json:"players"`
}

// DecodeTable parses a table as the rules engine sends it over the wire.
// Chip amounts are coerced to integers and loose booleans normalized.
func DecodeTable(data []byte) (*Table, error) {
	var w wireTable
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	t := &Table{
		ID:           w.ID,
		OwnerID:      w.OwnerID,
		Name:         w.Name,
		Variant:      w.Variant,
		MaxSeats:     w.MaxSeats,
		Speed:        w.Speed,
		StraddleMode: w.StraddleMode,
		HandNo:       int64(w.HandNo),
		Version:      w.Version,
		Deck:         w.Deck,
		Burns:        w.Burns,
		Discards:     w.Discards,
		State: State{
			Board:         w.State.Board,
			DealerSeat:    w.State.DealerSeat,
			ToAct:         w.State.ToAct,
			Phase:         w.State.Phase,
			Round:         w.State.Round,
			ToCall:        int64(w.State.ToCall),
			MinRaise:      int64(w.State.MinRaise),
			TimerDeadline: w.State.TimerDeadline.ptr(),
			DrawPending:   bool(w.State.DrawPending),
			CurrentSeat:   w.State.CurrentSeat,
		},
	}
	for _, l := range w.BlindLevels {
		t.BlindLevels = append(t.BlindLevels, BlindLevel{
			Small:   int64(l.Small),
			Big:     int64(l.Big),
			Ante:    int64(l.Ante),
			Minutes: l.Minutes,
		})
	}
	for _, p := range w.State.Pots {
		t.State.Pots = append(t.State.Pots, Pot{Amount: int64(p.Amount), Eligible: p.Eligible})
	}
	for _, p := range w.Players {
		if p == nil {
			continue
		}
		var timebanks *int
		if p.Timebanks != nil {
			n := int(*p.Timebanks)
			timebanks = &n
		}
		t.Players = append(t.Players, &Player{
			UserID:         p.UserID,
			Seat:           p.Seat,
			Sitting:        bool(p.Sitting),
			Stack:          int64(p.Stack),
			Folded:         bool(p.Folded),
			AllIn:          bool(p.AllIn),
			RoundCommitted: int64(p.RoundCommitted),
			TotalCommitted: int64(p.TotalCommitted),
			Timebanks:      timebanks,
			Cards:          p.Cards,
		})
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

type wireEvent struct {
	UserID *string         `json:"userId"`
	Seat   *int            `json:"seat"`
	Street *string         `json:"street"`
	Action string          `json:"action"`
	Amount *chips          `json:"amount"`
	Info   json.RawMessage `json:"info"`
}

// DecodeHandEvent parses one action report. A null info is treated as absent.
func DecodeHandEvent(data []byte) (HandEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return HandEvent{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	evt := HandEvent{
		UserID: w.UserID,
		Seat:   w.Seat,
		Street: w.Street,
		Action: w.Action,
		Amount: w.Amount.ptr(),
	}
	if info := bytes.TrimSpace(w.Info); len(info) > 0 && !bytes.Equal(info, []byte("null")) {
		evt.Info = info
	}
	if err := evt.Validate(); err != nil {
		return HandEvent{}, err
	}
	return evt, nil
}
