package comm

import (
	"encoding/json"
	"errors"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/config"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/snapshot"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

// Message is the envelope the rules engine publishes on the engine topic.
type Message struct {
	Type    string          `json:"type"` // e.g. "save-table", "record-action"
	Data    json.RawMessage `json:"data"`
	TableID string          `json:"tableId,omitempty"`
}

const (
	TypeSaveTable    = "save-table"
	TypeStartHand    = "start-hand"
	TypeRecordAction = "record-action"
	TypeFinishHand   = "finish-hand"
	TypeAdjustChips  = "adjust-chips"
	TypeUpsertUser   = "upsert-user"
	TypeSetChips     = "set-chips"
)

// Result answers every Message. Only the fields relevant to Type are set.
type Result struct {
	Type     string `json:"type"`
	TableID  string `json:"tableId,omitempty"`
	OK       bool   `json:"ok"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
	Version  int64  `json:"version,omitempty"`
	HandID   int64  `json:"handId,omitempty"`
	ActionID int64  `json:"actionId,omitempty"`
	Chips    *int64 `json:"chips,omitempty"`
}

type StartHand struct {
	TableID string `json:"tableId"`
	HandNo  int64  `json:"handNo"`
	Variant string `json:"variant"`
}

// RecordAction carries the hand id next to the engine's own event fields.
type RecordAction struct {
	HandID int64           `json:"handId"`
	Event  json.RawMessage `json:"event"`
}

type FinishHand struct {
	HandID  int64           `json:"handId"`
	Board   []string        `json:"board"`
	Pots    json.RawMessage `json:"pots"`
	Winners json.RawMessage `json:"winners"`
}

type AdjustChips struct {
	UserID string `json:"userId"`
	Delta  int64  `json:"delta"`
}

type UpsertUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Chips  int64  `json:"chips"`
}

type SetChips struct {
	UserID string `json:"userId"`
	Chips  int64  `json:"chips"`
}

// Result codes
const (
	CodeNotFound          = "not_found"
	CodeExpired           = "expired"
	CodeExhausted         = "exhausted"
	CodeVersionConflict   = "version_conflict"
	CodeHandFinished      = "hand_finished"
	CodeInsufficientChips = "insufficient_chips"
	CodeInvalid           = "invalid"
	CodeTxFailed          = "tx_failed"
	CodeInternal          = "internal"
)

var ErrInvalidMessage = errors.New("invalid message")

// CodeFor maps an error from the table service to a stable result code.
func CodeFor(err error) string {
	var txErr *store.TxError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, store.ErrExpired):
		return CodeExpired
	case errors.Is(err, store.ErrExhausted):
		return CodeExhausted
	case errors.Is(err, store.ErrVersionConflict):
		return CodeVersionConflict
	case errors.Is(err, store.ErrHandFinished):
		return CodeHandFinished
	case errors.Is(err, store.ErrInsufficientChips):
		return CodeInsufficientChips
	case errors.Is(err, store.ErrInvalidInvite),
		errors.Is(err, engine.ErrInvalidTable),
		errors.Is(err, snapshot.ErrUnsupportedVersion),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, ErrInvalidMessage):
		return CodeInvalid
	case errors.As(err, &txErr):
		return CodeTxFailed
	default:
		return CodeInternal
	}
}

// Failed builds the result for a message that could not be applied.
func Failed(msgType, tableID string, err error) Result {
	return Result{
		Type:    msgType,
		TableID: tableID,
		OK:      false,
		Code:    CodeFor(err),
		Error:   err.Error(),
	}
}
