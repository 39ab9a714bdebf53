package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pathlab/pathlab/internal/platform/apperr"
)

// PostgreSQL SQLSTATE codes surfaced as conflicts.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// MapError translates driver errors into the apperr taxonomy. A missing row
// becomes NotFound for entity/id; unique and foreign-key violations become
// Conflict. Other errors are returned unchanged.
func MapError(err error, entity string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("%s already exists", entity))
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("%s is still referenced or references a missing record", entity))
		}
	}
	return err
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
