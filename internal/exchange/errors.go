package exchange

import (
	"errors"
	"fmt"

	"timeout-exchange-go/internal/ledger"
)

var (
	// ErrNotFound covers unknown stock codes and unknown, foreign or already closed trades.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds is returned when a position costs more than the user's balance.
	ErrInsufficientFunds = ledger.ErrInsufficientFunds
	// ErrInvalidOrder is returned for malformed orders, such as a non-positive share count.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrStorage wraps any persistence failure. The operation was rolled back.
	ErrStorage = errors.New("storage error")
)

// storageError wraps err with ErrStorage unless it already carries a known error.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrInsufficientFunds, ErrInvalidOrder, ErrStorage} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
