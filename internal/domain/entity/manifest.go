package entity

import (
	"fmt"
	"time"
)

// WeekKey identifies an ISO calendar week
type WeekKey struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// WeekOf returns the ISO week containing t
func WeekOf(t time.Time) WeekKey {
	y, w := t.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// Valid reports whether the week number is in the ISO range
func (w WeekKey) Valid() bool {
	return w.Year > 0 && w.Week >= 1 && w.Week <= 53
}

func (w WeekKey) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Week)
}

// DocumentManifest (bizonylat) groups the line items of one manifest number within one week
type DocumentManifest struct {
	ID             int64       `json:"id"`
	ManifestNumber string      `json:"manifest_number"`
	Week           WeekKey     `json:"week"`
	ItemCount      int         `json:"item_count"`
	Done           bool        `json:"done"`
	Items          []*LineItem `json:"items,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// LineItem is one product row tracked for collection.
// Total equals the sum of FoundEvents unless Overridden is set by a manual total.
type LineItem struct {
	ID          int64     `json:"id"`
	ManifestID  int64     `json:"manifest_id"`
	ProductCode string    `json:"product_code"`
	ProductName string    `json:"product_name"`
	ExpectedQty int       `json:"expected_qty"`
	Sequence    int       `json:"sequence"`
	Collected   bool      `json:"collected"`
	FoundEvents []int     `json:"found_events"`
	Total       int       `json:"total"`
	Overridden  bool      `json:"overridden"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LineItemDraft is an extracted line item before it is bound to a stored manifest
type LineItemDraft struct {
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	ExpectedQty int    `json:"expected_qty"`
	Sequence    int    `json:"sequence"`
}

// ManifestGroup holds the drafts extracted for one manifest number
type ManifestGroup struct {
	ManifestNumber string          `json:"manifest_number"`
	Items          []LineItemDraft `json:"items"`
}

// PageResult is the line-item extraction result of one page, groups sorted by manifest number
type PageResult []ManifestGroup

// ItemTotal counts the drafts across all groups
func (p PageResult) ItemTotal() int {
	n := 0
	for _, g := range p {
		n += len(g.Items)
	}
	return n
}
