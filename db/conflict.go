package db

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkovac/zaloga/model"
)

// IsBusy reports whether err is a SQLite busy or locked error.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_BUSY || se.Code() == sqlite3.SQLITE_LOCKED
	}
	return false
}

// Conflict maps SQLite busy errors to model.ErrConcurrencyConflict so
// callers can match with errors.Is and retry the whole operation. Other
// errors pass through unchanged.
func Conflict(err error) error {
	if IsBusy(err) {
		return fmt.Errorf("%w: %v", model.ErrConcurrencyConflict, err)
	}
	return err
}
