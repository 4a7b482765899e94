package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrorKind groups store errors by how callers should react to them.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindNotFound    ErrorKind = "not_found"
	KindDuplicate   ErrorKind = "duplicate"
	KindForeignKey  ErrorKind = "foreign_key"
	KindConstraint  ErrorKind = "constraint"
	KindBusy        ErrorKind = "busy"
	KindUnavailable ErrorKind = "unavailable"
	KindUnknown     ErrorKind = "unknown"
)

// ClassifyError maps a store error to an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return KindDuplicate
	}
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return KindDuplicate
		case sqlite3.ErrConstraintForeignKey:
			return KindForeignKey
		}
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return KindConstraint
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return KindBusy
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return KindUnavailable
		}
		return KindUnknown
	}

	// database/sql does not export its closed-pool error.
	if strings.Contains(err.Error(), "database is closed") {
		return KindUnavailable
	}

	return KindUnknown
}

// IsSystemic reports whether err means the store as a whole is unusable,
// as opposed to one record being rejected.
func IsSystemic(err error) bool {
	return ClassifyError(err) == KindUnavailable
}
