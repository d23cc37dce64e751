package storage

import (
	"errors"
	"strings"

	"github.com/agent-memory/agent-memory/internal/domain/apperror"
)

// classify maps a raw driver error to a retryable/fatal apperror. Callers
// (Transaction wrappers) use apperror.IsRetryable to decide whether to
// back off and retry.
func classify(err error) *apperror.Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "busy"),
		strings.Contains(msg, "deadlock detected"),
		strings.Contains(msg, "could not serialize access"),
		strings.Contains(msg, "serialization_failure"),
		strings.Contains(msg, "40001"), // postgres serialization_failure
		strings.Contains(msg, "40p01"): // postgres deadlock_detected
		return apperror.Wrap(apperror.CodeStorageRetryable, "storage operation temporarily failed", err)
	case errors.Is(err, ErrNotFound):
		return apperror.Wrap(apperror.CodeNotFound, "not found", err)
	default:
		return apperror.Wrap(apperror.CodeStorageFatal, "storage operation failed", err)
	}
}

// ErrNotFound is the sentinel every adapter returns for a missing row;
// repositories translate it to apperror.NotFound with entity context.
var ErrNotFound = errors.New("storage: not found")
