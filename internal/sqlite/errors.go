package sqlite

import (
	"errors"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// errorCode returns the result code of a driver error.
func errorCode(err error) (int, bool) {
	var serr *moderncsqlite.Error
	if !errors.As(err, &serr) {
		return 0, false
	}
	return serr.Code(), true
}

// Primary result codes only say SQLITE_CONSTRAINT, so the message decides
// when extended codes are not reported.
func constraintFailed(err error, kind string, codes ...int) bool {
	if err == nil {
		return false
	}
	if code, ok := errorCode(err); ok {
		for _, c := range codes {
			if code == c {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), kind+" constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return constraintFailed(err, "FOREIGN KEY", sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY)
}

func isUniqueViolation(err error) bool {
	return constraintFailed(err, "UNIQUE", sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}
