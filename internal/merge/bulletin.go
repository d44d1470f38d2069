package merge

import (
	"time"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

// AppendBulletinPage adds one page of blocks to doc and returns the page number it was given.
// The preview fields are only filled from the first block of the first page.
func AppendBulletinPage(doc *entity.Document, blocks []entity.BulletinBlock) int {
	page := doc.MaxPageNumber() + 1
	firstPage := len(doc.Blocks) == 0

	for i := range blocks {
		b := blocks[i]
		b.ID = 0
		b.PageNumber = page
		b.Position = len(doc.Blocks)
		doc.Blocks = append(doc.Blocks, b)
	}

	if firstPage && len(blocks) > 0 {
		first := blocks[0]
		doc.Topic = first.Topic
		doc.Audience = first.Audience
		doc.Deadline = first.Deadline
		doc.Body = first.Body
	}

	if page > doc.PageCount {
		doc.PageCount = page
	}
	doc.Processed = len(doc.Blocks) > 0
	doc.UpdatedAt = time.Now()
	return page
}
