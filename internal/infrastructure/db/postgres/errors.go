package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jd52dev/excursion/internal/domain"
)

const (
	uniqueViolation   = "23505"
	numericOutOfRange = "22003"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// mapErr turns driver failures into domain errors. Domain errors pass through.
func mapErr(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var ae *domain.AppError
	if errors.As(err, &ae) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == numericOutOfRange {
		return domain.ErrValidation("pledge would overflow the item total")
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != "" {
		return domain.ErrNotFound(notFound)
	}
	return domain.ErrTransient(err)
}
