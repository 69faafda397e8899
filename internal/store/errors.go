package store

import (
	"errors"

	sqlite "modernc.org/sqlite"
)

// Primary sqlite result codes. Extended codes carry these in the low byte.
const (
	codeBusy       = 5
	codeLocked     = 6
	codeConstraint = 19
)

// IsBusy reports whether err is a transient lock error; the caller may retry.
func IsBusy(err error) bool {
	c, ok := sqliteCode(err)
	return ok && (c == codeBusy || c == codeLocked)
}

// IsConstraint reports whether err is an integrity violation (unique key,
// foreign key). Callers treat unique violations on find-or-create paths as
// "already exists" and proceed with the existing row.
func IsConstraint(err error) bool {
	c, ok := sqliteCode(err)
	return ok && c == codeConstraint
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Code() & 0xff, true
}
