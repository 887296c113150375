package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("invite expired")
	ErrExhausted         = errors.New("invite exhausted")
	ErrInvalidInvite     = errors.New("invalid invite parameters")
	ErrVersionConflict   = errors.New("stale table version")
	ErrHandFinished      = errors.New("hand already finished")
	ErrInsufficientChips = errors.New("insufficient chips")
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// TxError reports a multi-row write that was rolled back.
type TxError struct {
	Op      string
	TableID string
	Err     error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s %s rolled back: %v", e.Op, e.TableID, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
