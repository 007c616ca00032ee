package db

import (
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// UniqueViolation reports which column of a composite unique index was hit.
type UniqueViolation struct {
	Table  string
	Column string
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("unique constraint violated on %s.%s", e.Table, e.Column)
}

func (e *UniqueViolation) Unwrap() error {
	return ErrDuplicate
}

func IsUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	if sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// asUniqueViolation converts a sqlite unique error into *UniqueViolation. The
// driver message looks like "UNIQUE constraint failed: accounts.role, accounts.phone";
// the last column is the distinguishing one for our (role, x) indexes.
func asUniqueViolation(err error) error {
	if !IsUniqueConstraintError(err) {
		return err
	}

	msg := err.Error()
	idx := strings.LastIndex(msg, ":")
	if idx == -1 {
		return ErrDuplicate
	}

	cols := strings.Split(msg[idx+1:], ",")
	last := strings.TrimSpace(cols[len(cols)-1])
	table, column, ok := strings.Cut(last, ".")
	if !ok {
		return &UniqueViolation{Column: last}
	}
	return &UniqueViolation{Table: table, Column: column}
}
