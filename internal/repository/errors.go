package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// IsForeignKeyViolation reports whether err came from a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation
}

// IsInvalidText reports whether postgres rejected a literal, typically a malformed UUID.
func IsInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgInvalidText
}

// IsNotFound reports whether a lookup found no row. An id that is not a valid UUID
// cannot match any row, so it counts as missing too.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || IsInvalidText(err)
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// where accumulates positional conditions for dynamic list queries.
type where struct {
	conds []string
	args  []interface{}
}

// add appends a condition; %[1]d in expr is replaced by the next placeholder index.
func (w *where) add(expr string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(expr, len(w.args)))
}

func (w *where) sql() string {
	clause := " WHERE 1=1"
	for _, c := range w.conds {
		clause += " AND " + c
	}
	return clause
}

func page(skip, take int) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", take, skip)
}
