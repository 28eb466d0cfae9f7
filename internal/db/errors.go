package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTransient marks a store failure worth retrying: a deadline, a dropped connection or a
// driver timeout.
var ErrTransient = errors.New("store: transient failure")

// MapTransient wraps err with ErrTransient when it is retryable and returns it unchanged otherwise.
func MapTransient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
