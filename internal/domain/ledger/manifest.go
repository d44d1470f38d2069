package ledger

import (
	"fmt"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

// Ledger applies item operations on one manifest and keeps its Done flag current
type Ledger struct {
	manifest *entity.DocumentManifest
}

// New wraps a manifest loaded with its items
func New(m *entity.DocumentManifest) *Ledger {
	l := &Ledger{manifest: m}
	l.Recompute()
	return l
}

// Manifest returns the wrapped manifest
func (l *Ledger) Manifest() *entity.DocumentManifest { return l.manifest }

// Item finds a line item by product code
func (l *Ledger) Item(code string) (*entity.LineItem, error) {
	for _, it := range l.manifest.Items {
		if it.ProductCode == code {
			return it, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrItemNotFound, code, l.manifest.ManifestNumber)
}

func (l *Ledger) RecordFound(code string, qty int) (*entity.LineItem, error) {
	return l.apply(code, func(it *entity.LineItem) error { return RecordFound(it, qty) })
}

func (l *Ledger) SetTotal(code string, total int) (*entity.LineItem, error) {
	return l.apply(code, func(it *entity.LineItem) error { return SetTotal(it, total) })
}

func (l *Ledger) DeleteEvent(code string, index int) (*entity.LineItem, error) {
	return l.apply(code, func(it *entity.LineItem) error { return DeleteEvent(it, index) })
}

func (l *Ledger) ToggleCollected(code string) (*entity.LineItem, error) {
	return l.apply(code, func(it *entity.LineItem) error {
		ToggleCollected(it)
		return nil
	})
}

// Recompute refreshes ItemCount and Done: all items collected and at least one item
func (l *Ledger) Recompute() {
	m := l.manifest
	m.ItemCount = len(m.Items)
	done := len(m.Items) > 0
	for _, it := range m.Items {
		if !it.Collected {
			done = false
			break
		}
	}
	m.Done = done
}

func (l *Ledger) apply(code string, op func(*entity.LineItem) error) (*entity.LineItem, error) {
	it, err := l.Item(code)
	if err != nil {
		return nil, err
	}
	if err := op(it); err != nil {
		return it, err
	}
	l.Recompute()
	return it, nil
}
