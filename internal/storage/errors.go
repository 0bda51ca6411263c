package storage

import (
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateAttendee is returned when an attendee registers twice
	// for the same event. The existing record is kept.
	ErrDuplicateAttendee = errors.New("attendee already registered for this event")

	// ErrNotFound is returned by lookups that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a transient storage failure. Callers retry
	// these with bounded backoff; everything else fails fast.
	ErrUnavailable = errors.New("storage unavailable")
)

// Postgres error classes that clear up on their own: connection
// exceptions, transaction rollbacks such as serialization failures and
// deadlocks, insufficient resources, operator intervention.
var transientPgClasses = []string{"08", "40", "53", "57"}

// Transient reports whether err is worth retrying. Integrity errors
// such as unique or foreign key violations repeat on every attempt and
// are not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, class := range transientPgClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}
