package entity

import "time"

// DefaultAudience is used when a bulletin block names no audience
const DefaultAudience = "Mindenki"

// TableProduct is one row of a product table embedded in a bulletin block
type TableProduct struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// BulletinBlock represents one topic section of a daily-info page.
// Topic is never empty for a stored block.
type BulletinBlock struct {
	ID         int64          `json:"id,omitempty"`
	Topic      string         `json:"topic"`
	Audience   string         `json:"audience"`
	Deadline   *string        `json:"deadline,omitempty"`
	Body       string         `json:"body"`
	Emoji      *string        `json:"emoji,omitempty"`
	Checkboxes []string       `json:"checkboxes,omitempty"`
	Images     []string       `json:"images,omitempty"`
	Products   []TableProduct `json:"products,omitempty"`
	PageNumber int            `json:"page_number"`
	Position   int            `json:"position"`
	Completed  bool           `json:"completed"`
}

// Document is the daily-info record of one calendar day
type Document struct {
	ID        int64     `json:"id"`
	Day       time.Time `json:"day"`
	Filename  string    `json:"filename"`
	Processed bool      `json:"processed"`
	PageCount int       `json:"page_count"`

	// Preview fields, taken from the first block of the first page
	Topic    string  `json:"topic"`
	Audience string  `json:"audience"`
	Deadline *string `json:"deadline,omitempty"`
	Body     string  `json:"body"`

	Blocks    []BulletinBlock `json:"blocks"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewDocument creates an empty, unprocessed document for the given day
func NewDocument(day time.Time, filename string) *Document {
	now := time.Now()
	return &Document{
		Day:       DayOf(day),
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MaxPageNumber returns the highest page number among the blocks, 0 when empty
func (d *Document) MaxPageNumber() int {
	max := 0
	for _, b := range d.Blocks {
		if b.PageNumber > max {
			max = b.PageNumber
		}
	}
	return max
}

// DayOf truncates t to midnight UTC of its calendar date
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats a day as YYYY-MM-DD
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
