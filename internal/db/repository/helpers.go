// Package repository implements the domain repository interfaces on SQLite.
package repository

import (
	"database/sql"
	"errors"

	"permctl/internal/domain"
)

// storageErr wraps an engine failure into the transient storage category.
// sql.ErrNoRows is not a storage failure and passes through untouched so
// callers can branch on it.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
