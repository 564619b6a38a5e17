package errors

import (
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKey reports whether err is a unique-constraint violation.
// The database connection runs with GORM error translation enabled, so the
// translated sentinel is checked first; the raw Postgres SQLSTATE is the
// fallback for paths that bypass translation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code() == ErrNotFound
	}
	return false
}

// Classify maps an arbitrary error from a database or provider call into the
// closed internal code set. Callers branch on the returned code instead of
// probing error shapes ad hoc.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case IsDuplicateKey(err):
		return ErrConflict
	case IsNotFound(err):
		return ErrNotFound
	}
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code()
	}
	return ErrInternal
}
