package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/db"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
)

const (
	DefaultHandPageSize = 50
	MaxHandPageSize     = 200
)

type HandStore struct {
	db db.DBTX
}

func NewHandStore(db db.DBTX) *HandStore {
	return &HandStore{db: db}
}

// StartHand records the beginning of t's current hand and returns its id.
func (s *HandStore) StartHand(ctx context.Context, t *engine.Table) (int64, error) {
	if t == nil || t.ID == "" {
		return 0, fmt.Errorf("%w: start hand without table id", engine.ErrInvalidTable)
	}

	var id int64
	err := s.db.QueryRow(ctx, `
        INSERT INTO hands (table_id, hand_no, variant)
        VALUES ($1, $2, $3)
        RETURNING id
    `, t.ID, t.HandNo, t.Variant).Scan(&id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return 0, fmt.Errorf("table %s: %w", t.ID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to start hand for table %s: %w", t.ID, err)
	}
	return id, nil
}

// RecordAction appends evt to an unfinished hand. The guard on ended_at and
// the insert are one statement.
func (s *HandStore) RecordAction(ctx context.Context, handID int64, evt engine.HandEvent) (int64, error) {
	if err := evt.Validate(); err != nil {
		return 0, err
	}

	var info any
	if len(evt.Info) > 0 {
		info = string(evt.Info)
	}

	const query = `
INSERT INTO actions (hand_id, user_id, seat, street, action, amount, info)
SELECT h.id, $2::text, $3::integer, $4::text, $5::text, $6::bigint, $7::jsonb
FROM hands h
WHERE h.id = $1
  AND h.ended_at IS NULL
RETURNING id
`
	var id int64
	err := s.db.QueryRow(ctx, query,
		handID, evt.UserID, evt.Seat, evt.Street, evt.Action, evt.Amount, info,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isNoRows(err) {
		return 0, fmt.Errorf("failed to record action on hand %d: %w", handID, err)
	}
	return 0, s.rejectWrite(ctx, handID)
}

// FinishHand stores the final board, pots and winners. A hand can only be
// finished once.
func (s *HandStore) FinishHand(ctx context.Context, handID int64, board []string, pots, winners json.RawMessage) error {
	if board == nil {
		board = []string{}
	}
	potsJSON, err := jsonOrEmptyList(pots)
	if err != nil {
		return fmt.Errorf("%w: pots: %v", engine.ErrInvalidTable, err)
	}
	winnersJSON, err := jsonOrEmptyList(winners)
	if err != nil {
		return fmt.Errorf("%w: winners: %v", engine.ErrInvalidTable, err)
	}

	tag, err := s.db.Exec(ctx, `
        UPDATE hands
        SET ended_at = NOW(), board = $2, pots = $3::jsonb, winners = $4::jsonb
        WHERE id = $1 AND ended_at IS NULL
    `, handID, board, potsJSON, winnersJSON)
	if err != nil {
		return fmt.Errorf("failed to finish hand %d: %w", handID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.rejectWrite(ctx, handID)
	}
	return nil
}

// rejectWrite explains why a guarded write on handID matched no row.
func (s *HandStore) rejectWrite(ctx context.Context, handID int64) error {
	var finished bool
	err := s.db.QueryRow(ctx, `SELECT ended_at IS NOT NULL FROM hands WHERE id = $1`, handID).Scan(&finished)
	switch {
	case isNoRows(err):
		return fmt.Errorf("hand %d: %w", handID, ErrNotFound)
	case err != nil:
		return fmt.Errorf("failed to check hand %d: %w", handID, err)
	case finished:
		return fmt.Errorf("hand %d: %w", handID, ErrHandFinished)
	default:
		return fmt.Errorf("hand %d: guarded write matched no row", handID)
	}
}

const selectHandColumns = `
SELECT id, table_id, hand_no, variant, started_at, ended_at, board, pots, winners
FROM hands
`

func (s *HandStore) GetHand(ctx context.Context, handID int64) (*models.Hand, error) {
	rows, err := s.db.Query(ctx, selectHandColumns+`WHERE id = $1`, handID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hand %d: %w", handID, err)
	}
	hands, err := scanHands(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get hand %d: %w", handID, err)
	}
	if len(hands) == 0 {
		return nil, fmt.Errorf("hand %d: %w", handID, ErrNotFound)
	}
	return &hands[0], nil
}

// ListHandsByTable pages through a table's hands, most recent first.
func (s *HandStore) ListHandsByTable(ctx context.Context, tableID string, limit, offset int) ([]models.Hand, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.db.Query(ctx, selectHandColumns+`
        WHERE table_id = $1
        ORDER BY id DESC
        LIMIT $2 OFFSET $3
    `, tableID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list hands for table %s: %w", tableID, err)
	}
	hands, err := scanHands(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list hands for table %s: %w", tableID, err)
	}
	return hands, nil
}

// ListActions returns a hand's actions in play order.
func (s *HandStore) ListActions(ctx context.Context, handID int64) ([]models.Action, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, hand_id, at, user_id, seat, street, action, amount, info
        FROM actions
        WHERE hand_id = $1
        ORDER BY id ASC
    `, handID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions for hand %d: %w", handID, err)
	}
	defer rows.Close()

	actions := []models.Action{}
	for rows.Next() {
		var (
			a    models.Action
			info []byte
		)
		err := rows.Scan(
			&a.ID,
			&a.HandID,
			&a.At,
			&a.UserID,
			&a.Seat,
			&a.Street,
			&a.Action,
			&a.Amount,
			&info,
		)
		if err != nil {
			return nil, err
		}
		if len(info) > 0 {
			a.Info = json.RawMessage(info)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func scanHands(rows pgx.Rows) ([]models.Hand, error) {
	defer rows.Close()

	hands := []models.Hand{}
	for rows.Next() {
		var (
			h       models.Hand
			pots    []byte
			winners []byte
		)
		err := rows.Scan(
			&h.ID,
			&h.TableID,
			&h.HandNo,
			&h.Variant,
			&h.StartedAt,
			&h.EndedAt,
			&h.Board,
			&pots,
			&winners,
		)
		if err != nil {
			return nil, err
		}
		if len(pots) > 0 {
			h.Pots = json.RawMessage(pots)
		}
		if len(winners) > 0 {
			h.Winners = json.RawMessage(winners)
		}
		if h.Board == nil {
			h.Board = []string{}
		}
		hands = append(hands, h)
	}
	return hands, rows.Err()
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHandPageSize
	}
	if limit > MaxHandPageSize {
		limit = MaxHandPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func jsonOrEmptyList(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "[]", nil
	}
	if !json.Valid(raw) {
		return "", errors.New("not valid json")
	}
	return string(raw), nil
}
