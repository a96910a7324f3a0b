package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// postgresの一意制約違反（23505）かどうか
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
