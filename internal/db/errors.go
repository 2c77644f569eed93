package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for storage operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates the requested thread or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a thread or job with the same ID already
	// exists, or a message ID is already used within its thread.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// Callers may retry.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// wrapQueryError maps known SurrealDB query failures onto the sentinels.
// A failed transaction reports one error per statement, so the whole
// error text is matched. Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "thread not found"):
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		case strings.Contains(msg, "message_seq"):
			// Another writer took the same position in the thread.
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		case strings.Contains(msg, "already exists"), strings.Contains(msg, "already contains"):
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}
