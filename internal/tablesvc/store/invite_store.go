package store

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/db"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
)

type InviteStore struct {
	db    db.DBTX
	clock quartz.Clock
}

func NewInviteStore(db db.DBTX, clock quartz.Clock) *InviteStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &InviteStore{db: db, clock: clock}
}

// a fresh token is drawn when the previous one collides
const createAttempts = 3

const selectInviteColumns = `SELECT token, table_id, expires_at, max_uses, used_count, created_at FROM invites`

// Create issues a new invite for tableID. expiresIn of zero means the invite
// never expires.
func (s *InviteStore) Create(ctx context.Context, tableID string, expiresIn time.Duration, maxUses int) (*models.Invite, error) {
	if tableID == "" || expiresIn < 0 || maxUses <= 0 {
		return nil, fmt.Errorf("%w: table=%q expiresIn=%s maxUses=%d", ErrInvalidInvite, tableID, expiresIn, maxUses)
	}

	inv := &models.Invite{
		TableID: tableID,
		MaxUses: maxUses,
	}
	if expiresIn > 0 {
		// postgres keeps microseconds
		at := s.clock.Now().Add(expiresIn).UTC().Truncate(time.Microsecond)
		inv.ExpiresAt = &at
	}

	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		inv.Token = uuid.NewString()
		err = s.db.QueryRow(ctx, `
            INSERT INTO invites (token, table_id, expires_at, max_uses, used_count)
            VALUES ($1, $2, $3, $4, 0)
            RETURNING created_at
        `, inv.Token, inv.TableID, inv.ExpiresAt, inv.MaxUses).Scan(&inv.CreatedAt)
		if pgCode(err) != pgUniqueViolation {
			break
		}
	}
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return nil, fmt.Errorf("table %s: %w", tableID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create invite for table %s: %w", tableID, err)
	}
	return inv, nil
}

func (s *InviteStore) Get(ctx context.Context, token string) (*models.Invite, error) {
	inv, err := scanInvite(s.db.QueryRow(ctx, selectInviteColumns+` WHERE token = $1`, token))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("invite: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return inv, nil
}

// Resolve reports the invite's current status without consuming a use.
func (s *InviteStore) Resolve(ctx context.Context, token string) (models.Resolution, error) {
	inv, err := s.Get(ctx, token)
	if err != nil {
		return models.Resolution{}, err
	}
	return models.Resolution{Status: inv.Status(s.clock.Now()), Invite: *inv}, nil
}

// Consume takes one use of the invite. The limit and expiry checks and the
// increment are a single conditional update, so concurrent consumers can
// never push used_count past max_uses.
func (s *InviteStore) Consume(ctx context.Context, token string) (*models.Invite, error) {
	now := s.clock.Now()
	inv, err := scanInvite(s.db.QueryRow(ctx, `
        UPDATE invites
        SET used_count = used_count + 1
        WHERE token = $1
          AND used_count < max_uses
          AND (expires_at IS NULL OR expires_at > $2)
        RETURNING token, table_id, expires_at, max_uses, used_count, created_at
    `, token, now))
	if err == nil {
		return inv, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to consume invite: %w", err)
	}

	current, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	switch current.Status(now) {
	case models.InviteExpired:
		return nil, fmt.Errorf("invite for table %s: %w", current.TableID, ErrExpired)
	case models.InviteExhausted:
		return nil, fmt.Errorf("invite for table %s: %w", current.TableID, ErrExhausted)
	default:
		return nil, fmt.Errorf("invite for table %s: conditional update matched no row", current.TableID)
	}
}

// ListByTable returns a table's invites, newest first.
func (s *InviteStore) ListByTable(ctx context.Context, tableID string) ([]models.Invite, error) {
	rows, err := s.db.Query(ctx, selectInviteColumns+` WHERE table_id = $1 ORDER BY created_at DESC, token`, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites for table %s: %w", tableID, err)
	}
	defer rows.Close()

	invites := []models.Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

func scanInvite(row pgx.Row) (*models.Invite, error) {
	inv := &models.Invite{}
	err := row.Scan(
		&inv.Token,
		&inv.TableID,
		&inv.ExpiresAt,
		&inv.MaxUses,
		&inv.UsedCount,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}
