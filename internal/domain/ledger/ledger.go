// Package ledger holds the quantity bookkeeping of manifest line items.
// Operations mutate in memory only; callers persist explicitly.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

var (
	ErrInvalidQuantity      = errors.New("found quantity must be positive")
	ErrNegativeTotal        = errors.New("total must not be negative")
	ErrEventIndexOutOfRange = errors.New("found event index out of range")
	ErrItemNotFound         = errors.New("line item not found in manifest")
)

// State is the collection progress of a line item, derived from Collected and Total
type State string

const (
	StateEmpty    State = "empty"
	StatePartial  State = "partial"
	StateComplete State = "complete"
)

// StateOf derives the state of an item
func StateOf(item *entity.LineItem) State {
	switch {
	case !item.Collected && item.Total == 0:
		return StateEmpty
	case item.Collected && (item.ExpectedQty == 0 || item.Total >= item.ExpectedQty):
		return StateComplete
	default:
		return StatePartial
	}
}

// RecordFound adds one found quantity. Non-positive quantities are rejected without change.
func RecordFound(item *entity.LineItem, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if item.Overridden && len(item.FoundEvents) == 0 && item.Total > 0 {
		// Continue from the manual total so later events still add up
		item.FoundEvents = append(item.FoundEvents, item.Total)
	}
	item.FoundEvents = append(item.FoundEvents, qty)
	item.Total = sum(item.FoundEvents)
	item.Overridden = false
	item.Collected = true
	touch(item)
	return nil
}

// SetTotal overrides the total and discards the event history
func SetTotal(item *entity.LineItem, total int) error {
	if total < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTotal, total)
	}
	item.Total = total
	item.FoundEvents = nil
	item.Overridden = true
	item.Collected = total > 0
	touch(item)
	return nil
}

// DeleteEvent removes one found event and recomputes the total. Collected is left as it was.
func DeleteEvent(item *entity.LineItem, index int) error {
	if index < 0 || index >= len(item.FoundEvents) {
		return fmt.Errorf("%w: %d of %d", ErrEventIndexOutOfRange, index, len(item.FoundEvents))
	}
	item.FoundEvents = append(item.FoundEvents[:index:index], item.FoundEvents[index+1:]...)
	item.Total = sum(item.FoundEvents)
	item.Overridden = false
	touch(item)
	return nil
}

// ToggleCollected flips Collected; unchecking starts the item over
func ToggleCollected(item *entity.LineItem) {
	item.Collected = !item.Collected
	if !item.Collected {
		item.Total = 0
		item.FoundEvents = nil
		item.Overridden = false
	}
	touch(item)
}

// Consistent reports whether Total agrees with the event history
func Consistent(item *entity.LineItem) bool {
	if item.Overridden {
		return len(item.FoundEvents) == 0
	}
	return item.Total == sum(item.FoundEvents)
}

func sum(events []int) int {
	total := 0
	for _, q := range events {
		total += q
	}
	return total
}

func touch(item *entity.LineItem) {
	item.UpdatedAt = time.Now()
}
