package service

import (
	"errors"
	"fmt"

	"github.com/garyjia/store-ops/internal/application/port"
)

// Service errors. Extraction and ledger errors pass through unchanged.
var (
	ErrSessionBusy      = errors.New("an extraction is already running for this session")
	ErrSessionNotFound  = errors.New("scan session not found")
	ErrSessionCancelled = errors.New("scan session call cancelled")
	ErrInvalidWeek      = errors.New("invalid ISO week")
	ErrPersistence      = errors.New("persistence failure")

	ErrNotFound = port.ErrNotFound
)

// persistenceError wraps a store failure. Not-found errors keep their own kind.
func persistenceError(op string, err error) error {
	if errors.Is(err, port.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
}
