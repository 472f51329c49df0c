// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow services to distinguish
// between different failure scenarios without inspecting driver errors.
// ErrForbidden indicates that the caller does not own the row it tried to
// change, while ErrConflict signals that an operation cannot proceed
// because dependent records still exist (e.g. deleting a product that
// consumption history refers to).
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup or scoped mutation matches no row.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting a
// product that consumptions still reference. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// Unique-key violations on the users table.
var (
	ErrDuplicateEmail   = errors.New("email already exists")
	ErrDuplicatePhone   = errors.New("phone already exists")
	ErrDuplicateWarName = errors.New("warName already exists")
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// duplicateUser maps a users unique-key violation to the matching sentinel.
// Other errors are returned unchanged.
func duplicateUser(err error) error {
	if mysqlCode(err) != mysqlDuplicateEntry {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "uq_users_email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "uq_users_phone"):
		return ErrDuplicatePhone
	case strings.Contains(msg, "uq_users_war_name"):
		return ErrDuplicateWarName
	}
	return ErrConflict
}

// isReferenced reports a foreign-key RESTRICT violation.
func isReferenced(err error) bool {
	return mysqlCode(err) == mysqlRowIsReferenced
}
