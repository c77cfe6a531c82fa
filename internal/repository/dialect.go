package repository

import (
	"errors"
	"strconv"
	"strings"

	"account-service/internal/apperrors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueEmailIndex = "uq_users_email"
	uniquePhoneIndex = "uq_users_phone"

	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// Dialect captures the few places where MySQL and PostgreSQL differ for this
// repository: placeholders, id retrieval and duplicate key errors.
type Dialect struct {
	Name string
	// Returning is true when inserts report the new id with RETURNING.
	Returning bool
}

var (
	MySQL    = Dialect{Name: "mysql"}
	Postgres = Dialect{Name: "postgres", Returning: true}
)

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL, nil
	case "postgres", "pgx":
		return Postgres, nil
	}
	return Dialect{}, errors.New("unsupported dialect " + driver)
}

// Rebind turns "?" placeholders into "$n" for PostgreSQL.
func (d Dialect) Rebind(query string) string {
	if !d.Returning {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// conflict maps a unique index violation to the field it protects. It
// returns nil for any other error.
func (d Dialect) conflict(err error) error {
	var index string

	var myErr *mysql.MySQLError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry:
		index = myErr.Message
	case errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation:
		index = pgErr.ConstraintName + " " + pgErr.Message
	default:
		return nil
	}

	switch {
	case strings.Contains(index, uniqueEmailIndex):
		return apperrors.ErrDuplicateEmail
	case strings.Contains(index, uniquePhoneIndex):
		return apperrors.ErrDuplicatePhone
	}
	return &apperrors.ConflictError{Field: "non_field_errors", Message: "duplicate value"}
}
