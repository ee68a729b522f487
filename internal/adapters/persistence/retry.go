package persistence

import (
	"strings"
	"time"

	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

const (
	storeMaxRetries  = 3
	storeBackoffBase = 500 * time.Millisecond
)

// isBusyError matches the transient lock contention errors SQLite reports
// under concurrent writers. Anything else (syntax, constraint, schema) is not
// worth retrying.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy")
}

// withStoreRetries runs op, retrying busy/locked failures with linear backoff.
// Non-transient errors fail fast.
func withStoreRetries(clock shared.Clock, op func() error) error {
	var err error
	for attempt := 1; attempt <= storeMaxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !isBusyError(err) {
			return err
		}
		if attempt < storeMaxRetries {
			clock.Sleep(storeBackoffBase * time.Duration(attempt))
		}
	}
	return shared.NewTransientError("store busy after %d attempts: %v", storeMaxRetries, err)
}
