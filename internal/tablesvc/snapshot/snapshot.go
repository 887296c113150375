// Package snapshot converts a live table into the versioned document stored
// in tables.state, and back.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
)

// Version is the schema version written into every new snapshot.
const Version = 1

var ErrUnsupportedVersion = errors.New("snapshot: unsupported schema version")

// State is the storage-ready game state of one table.
type State struct {
	V             int          `json:"v"`
	Board         []string     `json:"board"`
	Pots          []engine.Pot `json:"pots"`
	DealerSeat    int          `json:"dealerSeat"`
	ToAct         *int         `json:"toAct"`
	Phase         string       `json:"phase"`
	Round         string       `json:"round"`
	ToCall        int64        `json:"toCall"`
	MinRaise      int64        `json:"minRaise"`
	TimerDeadline *int64       `json:"timerDeadline"`
	Deck          []string     `json:"deck"`
	Burns         []string     `json:"burns"`
	Discards      []string     `json:"discards"`
	DrawPending   bool         `json:"drawPending"`
	CurrentSeat   *int         `json:"currentSeat"`
}

// Serialize copies the persistent part of t. The result shares no memory
// with the live table.
func Serialize(t *engine.Table) State {
	if t == nil {
		return Empty()
	}
	s := t.State
	return State{
		V:             Version,
		Board:         cloneStrings(s.Board),
		Pots:          clonePots(s.Pots),
		DealerSeat:    s.DealerSeat,
		ToAct:         cloneInt(s.ToAct),
		Phase:         s.Phase,
		Round:         s.Round,
		ToCall:        s.ToCall,
		MinRaise:      s.MinRaise,
		TimerDeadline: cloneInt64(s.TimerDeadline),
		Deck:          cloneStrings(t.Deck),
		Burns:         cloneStrings(t.Burns),
		Discards:      cloneStrings(t.Discards),
		DrawPending:   s.DrawPending,
		CurrentSeat:   cloneInt(s.CurrentSeat),
	}
}

// Empty is the snapshot of a table that has never dealt a hand.
func Empty() State {
	return State{
		V:        Version,
		Board:    []string{},
		Pots:     []engine.Pot{},
		Deck:     []string{},
		Burns:    []string{},
		Discards: []string{},
	}
}

// Restore writes every snapshot field back into t. Transient engine fields
// are left untouched.
func Restore(s State, t *engine.Table) {
	t.State.Board = cloneStrings(s.Board)
	t.State.Pots = clonePots(s.Pots)
	t.State.DealerSeat = s.DealerSeat
	t.State.ToAct = cloneInt(s.ToAct)
	t.State.Phase = s.Phase
	t.State.Round = s.Round
	t.State.ToCall = s.ToCall
	t.State.MinRaise = s.MinRaise
	t.State.TimerDeadline = cloneInt64(s.TimerDeadline)
	t.State.DrawPending = s.DrawPending
	t.State.CurrentSeat = cloneInt(s.CurrentSeat)
	t.Deck = cloneStrings(s.Deck)
	t.Burns = cloneStrings(s.Burns)
	t.Discards = cloneStrings(s.Discards)
}

func Encode(s State) ([]byte, error) {
	s.V = Version
	return json.Marshal(s)
}

// Decode reads a stored snapshot. Documents written before versioning was
// introduced carry no "v" field and are upgraded in place.
func Decode(data []byte) (State, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return Empty(), nil
	}

	var probe struct {
		V *int `json:"v"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}

	var s State
	switch {
	case probe.V == nil:
		legacy, err := decodeLegacy(data)
		if err != nil {
			return State{}, err
		}
		s = legacy
	case *probe.V == Version:
		if err := json.Unmarshal(data, &s); err != nil {
			return State{}, fmt.Errorf("snapshot: %w", err)
		}
	default:
		return State{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *probe.V)
	}

	normalize(&s)
	return s, nil
}

// legacyState is the unversioned layout. It duplicated the whole engine
// state under "state" and stored drawPending as an arbitrary value or null.
type legacyState struct {
	Board         []string        `json:"board"`
	Pots          []engine.Pot    `json:"pots"`
	DealerSeat    int             `json:"dealerSeat"`
	ToAct         *int            `json:"toAct"`
	Phase         string          `json:"phase"`
	Round         string          `json:"round"`
	ToCall        int64           `json:"toCall"`
	MinRaise      int64           `json:"minRaise"`
	TimerDeadline *int64          `json:"timerDeadline"`
	Deck          []string        `json:"deck"`
	Burns         []string        `json:"burns"`
	Discards      []string        `json:"discards"`
	DrawPending   json.RawMessage `json:"drawPending"`
	CurrentSeat   *int            `json:"currentSeat"`
}

func decodeLegacy(data []byte) (State, error) {
	var l legacyState
	if err := json.Unmarshal(data, &l); err != nil {
		return State{}, fmt.Errorf("snapshot: legacy document: %w", err)
	}
	pending := bytes.TrimSpace(l.DrawPending)
	return State{
		V:             Version,
		Board:         l.Board,
		Pots:          l.Pots,
		DealerSeat:    l.DealerSeat,
		ToAct:         l.ToAct,
		Phase:         l.Phase,
		Round:         l.Round,
		ToCall:        l.ToCall,
		MinRaise:      l.MinRaise,
		TimerDeadline: l.TimerDeadline,
		Deck:          l.Deck,
		Burns:         l.Burns,
		Discards:      l.Discards,
		DrawPending: len(pending) > 0 &&
			!bytes.Equal(pending, []byte("null")) &&
			!bytes.Equal(pending, []byte("false")) &&
			!bytes.Equal(pending, []byte("0")),
		CurrentSeat: l.CurrentSeat,
	}, nil
}

func normalize(s *State) {
	if s.Board == nil {
		s.Board = []string{}
	}
	if s.Pots == nil {
		s.Pots = []engine.Pot{}
	}
	if s.Deck == nil {
		s.Deck = []string{}
	}
	if s.Burns == nil {
		s.Burns = []string{}
	}
	if s.Discards == nil {
		s.Discards = []string{}
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clonePots(in []engine.Pot) []engine.Pot {
	out := make([]engine.Pot, len(in))
	for i, p := range in {
		out[i] = engine.Pot{Amount: p.Amount}
		if p.Eligible != nil {
			out[i].Eligible = append([]int(nil), p.Eligible...)
		}
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
