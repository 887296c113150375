package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/db"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/snapshot"
)

type TableStore struct {
	db db.DBTX
}

func NewTableStore(db db.DBTX) *TableStore {
	return &TableStore{db: db}
}

const insertTableSQL = `
INSERT INTO tables (id, owner_id, name, variant, max_seats, speed, straddle_mode, blind_levels, hand_no, state, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10::jsonb, 1)
ON CONFLICT (id) DO NOTHING
RETURNING version
`

const updateTableSQL = `
UPDATE tables
SET owner_id = $2, name = $3, variant = $4, max_seats = $5, speed = $6, straddle_mode = $7,
    blind_levels = $8::jsonb, hand_no = $9, state = $10::jsonb,
    version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $11
RETURNING version
`

const upsertPlayerSQL = `
INSERT INTO players (table_id, user_id, seat, sitting, stack, folded, all_in, round_committed, total_committed, timebanks, cards)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (table_id, user_id) DO UPDATE
SET seat = EXCLUDED.seat,
    sitting = EXCLUDED.sitting,
    stack = EXCLUDED.stack,
    folded = EXCLUDED.folded,
    all_in = EXCLUDED.all_in,
    round_committed = EXCLUDED.round_committed,
    total_committed = EXCLUDED.total_committed,
    timebanks = EXCLUDED.timebanks,
    cards = EXCLUDED.cards,
    updated_at = NOW()
`

const selectTableColumns = `
SELECT id, owner_id, name, variant, max_seats, speed, straddle_mode, blind_levels, hand_no, state, version, created_at, updated_at
FROM tables
`

const selectPlayerColumns = `
SELECT table_id, user_id, seat, sitting, stack, folded, all_in, round_committed, total_committed, timebanks, cards, updated_at
FROM players
`

// Save writes the table row and every player row in one transaction and
// returns the new table version. t.Version must be the version the caller
// last read, or 0 for a table that was never saved; anything else fails with
// ErrVersionConflict and nothing is written.
func (s *TableStore) Save(ctx context.Context, t *engine.Table) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	blinds := t.BlindLevels
	if blinds == nil {
		blinds = []engine.BlindLevel{}
	}
	blindsJSON, err := json.Marshal(blinds)
	if err != nil {
		return 0, fmt.Errorf("encode blind levels for table %s: %w", t.ID, err)
	}
	stateJSON, err := snapshot.Encode(snapshot.Serialize(t))
	if err != nil {
		return 0, fmt.Errorf("encode snapshot for table %s: %w", t.ID, err)
	}

	speed := t.Speed
	if speed == "" {
		speed = models.DefaultSpeed
	}
	var straddle *string
	if t.StraddleMode != "" {
		straddle = &t.StraddleMode
	}
	args := []any{t.ID, t.OwnerID, t.Name, t.Variant, t.MaxSeats, speed, straddle, string(blindsJSON), t.HandNo, string(stateJSON)}

	var version int64
	err = inTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var row pgx.Row
		if t.Version == 0 {
			row = tx.QueryRow(ctx, insertTableSQL, args...)
		} else {
			row = tx.QueryRow(ctx, updateTableSQL, append(args, t.Version)...)
		}
		if err := row.Scan(&version); err != nil {
			if isNoRows(err) {
				return fmt.Errorf("table %s at version %d: %w", t.ID, t.Version, ErrVersionConflict)
			}
			return &TxError{Op: "save table", TableID: t.ID, Err: err}
		}

		for _, p := range t.Players {
			timebanks := models.DefaultTimebanks
			if p.Timebanks != nil {
				timebanks = *p.Timebanks
			}
			cards := p.Cards
			if cards == nil {
				cards = []string{}
			}
			if _, err := tx.Exec(ctx, upsertPlayerSQL,
				t.ID, p.UserID, p.Seat, p.Sitting, p.Stack, p.Folded, p.AllIn,
				p.RoundCommitted, p.TotalCommitted, timebanks, cards,
			); err != nil {
				return &TxError{Op: "save player " + p.UserID + " at table", TableID: t.ID, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// GetByID returns the table with its players from one consistent snapshot.
func (s *TableStore) GetByID(ctx context.Context, id string) (*models.Table, error) {
	var table *models.Table
	err := inTx(ctx, s.db, readOnly, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectTableColumns+`WHERE id = $1`, id)
		if err != nil {
			return err
		}
		tables, err := scanTables(rows)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			return fmt.Errorf("table %s: %w", id, ErrNotFound)
		}
		table = &tables[0]

		rows, err = tx.Query(ctx, selectPlayerColumns+`WHERE table_id = $1 ORDER BY seat, user_id`, id)
		if err != nil {
			return err
		}
		players, err := scanPlayers(rows)
		if err != nil {
			return err
		}
		table.Players = players
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return table, nil
}

// LoadAll returns every table, oldest first, with its players. Tables and
// players are read in one repeatable-read transaction.
func (s *TableStore) LoadAll(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	err := inTx(ctx, s.db, readOnly, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectTableColumns+`ORDER BY created_at, id`)
		if err != nil {
			return err
		}
		if tables, err = scanTables(rows); err != nil {
			return err
		}

		rows, err = tx.Query(ctx, selectPlayerColumns+`ORDER BY table_id, seat, user_id`)
		if err != nil {
			return err
		}
		players, err := scanPlayers(rows)
		if err != nil {
			return err
		}

		byTable := make(map[string][]models.Player, len(tables))
		for _, p := range players {
			byTable[p.TableID] = append(byTable[p.TableID], p)
		}
		for i := range tables {
			tables[i].Players = byTable[tables[i].ID]
			if tables[i].Players == nil {
				tables[i].Players = []models.Player{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}
	return tables, nil
}

// Delete removes the table. Players, hands and invites go with it.
func (s *TableStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete table %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanTables(rows pgx.Rows) ([]models.Table, error) {
	defer rows.Close()

	tables := []models.Table{}
	for rows.Next() {
		var (
			t          models.Table
			blindsJSON []byte
			stateJSON  []byte
		)
		err := rows.Scan(
			&t.ID,
			&t.OwnerID,
			&t.Name,
			&t.Variant,
			&t.MaxSeats,
			&t.Speed,
			&t.StraddleMode,
			&blindsJSON,
			&t.HandNo,
			&stateJSON,
			&t.Version,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(blindsJSON) > 0 {
			if err := json.Unmarshal(blindsJSON, &t.BlindLevels); err != nil {
				return nil, fmt.Errorf("table %s blind levels: %w", t.ID, err)
			}
		}
		if t.BlindLevels == nil {
			t.BlindLevels = []engine.BlindLevel{}
		}
		if t.State, err = snapshot.Decode(stateJSON); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.ID, err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func scanPlayers(rows pgx.Rows) ([]models.Player, error) {
	defer rows.Close()

	players := []models.Player{}
	for rows.Next() {
		var p models.Player
		err := rows.Scan(
			&p.TableID,
			&p.UserID,
			&p.Seat,
			&p.Sitting,
			&p.Stack,
			&p.Folded,
			&p.AllIn,
			&p.RoundCommitted,
			&p.TotalCommitted,
			&p.Timebanks,
			&p.Cards,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if p.Cards == nil {
			p.Cards = []string{}
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
