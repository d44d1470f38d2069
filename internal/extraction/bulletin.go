package extraction

import (
	"strings"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

// Checked and unchecked box glyphs printed on bulletin forms
const (
	checkedGlyphs   = "☑☒✓✔■⊠"
	uncheckedGlyphs = "□☐"
)

// BulletinExtractor turns recognized daily-info text into bulletin blocks
type BulletinExtractor struct {
	classifier      *Classifier
	defaultAudience string
}

// NewBulletinExtractor creates an extractor. An empty defaultAudience selects entity.DefaultAudience.
func NewBulletinExtractor(c *Classifier, defaultAudience string) *BulletinExtractor {
	if c == nil {
		c = NewClassifier(nil)
	}
	if defaultAudience == "" {
		defaultAudience = entity.DefaultAudience
	}
	return &BulletinExtractor{classifier: c, defaultAudience: defaultAudience}
}

// ExtractText normalizes raw recognized text and extracts its blocks
func (e *BulletinExtractor) ExtractText(text string) []entity.BulletinBlock {
	return e.ExtractLines(SplitLines(text))
}

// ExtractLines extracts one block per topic label. Text without any topic label yields no blocks.
func (e *BulletinExtractor) ExtractLines(lines []string) []entity.BulletinBlock {
	var starts []int
	for i, line := range lines {
		if kind, _, ok := e.classifier.Label(line); ok && kind == LabelTopic {
			starts = append(starts, i)
		}
	}

	blocks := make([]entity.BulletinBlock, 0, len(starts))
	for n, start := range starts {
		end := len(lines)
		if n+1 < len(starts) {
			end = starts[n+1]
		}
		if b, ok := e.extractSpan(lines[start:end]); ok {
			b.Position = len(blocks)
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func (e *BulletinExtractor) extractSpan(span []string) (entity.BulletinBlock, bool) {
	var (
		block    entity.BulletinBlock
		body     []string
		table    []entity.TableProduct
		audience string
		deadline string
		seen     = map[LabelKind]bool{}
	)

	flushTable := func() {
		if len(table) == 0 {
			return
		}
		block.Products = append(block.Products, table...)
		body = append(body, "\n"+renderTable(table)+"\n")
		table = nil
	}

	for i := 0; i < len(span); i++ {
		line := strings.TrimSpace(span[i])

		if kind, value, ok := e.classifier.Label(line); ok {
			flushTable()
			if value == "" && i+1 < len(span) && !e.isLabel(span[i+1]) {
				value = strings.TrimSpace(span[i+1])
				i++
			}
			if seen[kind] && kind != LabelBody {
				// A repeated label inside one span is content, not a field
				if value != "" {
					body = append(body, value)
				}
				continue
			}
			seen[kind] = true
			switch kind {
			case LabelTopic:
				block.Topic = value
			case LabelAudience:
				audience = value
			case LabelDeadline:
				deadline = value
			case LabelBody:
				if value != "" {
					body = append(body, value)
				}
			}
			continue
		}

		if boxes, ok := parseCheckboxes(line); ok {
			flushTable()
			block.Checkboxes = append(block.Checkboxes, boxes...)
			continue
		}

		if e.classifier.IsNoise(line) {
			continue
		}

		if IsTableLine(line) {
			table = append(table, parseTableProduct(line))
			continue
		}

		flushTable()
		body = append(body, line)
	}
	flushTable()

	block.Topic = strings.TrimSpace(block.Topic)
	if block.Topic == "" {
		return entity.BulletinBlock{}, false
	}
	if audience == "" {
		audience = e.defaultAudience
	}
	block.Audience = audience
	block.Deadline = entity.StringPtr(deadline)
	block.Body = strings.TrimSpace(strings.Join(body, "\n"))
	emoji := FallbackEmoji(block.Topic)
	block.Emoji = &emoji
	return block, true
}

func (e *BulletinExtractor) isLabel(line string) bool {
	_, _, ok := e.classifier.Label(line)
	return ok
}

// FromVision converts model-structured blocks, correcting OCR confusions in every free-text field.
// Blocks without a topic are dropped.
func (e *BulletinExtractor) FromVision(in []VisionBlock) []entity.BulletinBlock {
	blocks := make([]entity.BulletinBlock, 0, len(in))
	for _, vb := range in {
		topic := strings.TrimSpace(CorrectText(vb.Topic))
		if topic == "" {
			continue
		}
		b := entity.BulletinBlock{
			Topic:    topic,
			Audience: strings.TrimSpace(CorrectText(vb.Audience)),
			Body:     strings.TrimSpace(CorrectText(vb.Body)),
			Position: len(blocks),
		}
		if b.Audience == "" {
			b.Audience = e.defaultAudience
		}
		if vb.Deadline != nil {
			b.Deadline = entity.StringPtr(strings.TrimSpace(CorrectText(*vb.Deadline)))
		}
		emoji := FallbackEmoji(topic)
		if vb.Emoji != nil && strings.TrimSpace(*vb.Emoji) != "" {
			emoji = strings.TrimSpace(*vb.Emoji)
		}
		b.Emoji = &emoji
		for _, c := range vb.Checkboxes {
			if c = strings.TrimSpace(CorrectText(c)); c != "" {
				b.Checkboxes = append(b.Checkboxes, c)
			}
		}
		for _, img := range vb.Images {
			if img = strings.TrimSpace(CorrectText(img)); img != "" {
				b.Images = append(b.Images, img)
			}
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// parseCheckboxes returns the labels following checked glyphs. ok is false when the line has no box glyph.
func parseCheckboxes(line string) ([]string, bool) {
	if !strings.ContainsAny(line, checkedGlyphs+uncheckedGlyphs) {
		return nil, false
	}
	var checked []string
	rest := line
	for {
		i := strings.IndexAny(rest, checkedGlyphs+uncheckedGlyphs)
		if i < 0 {
			break
		}
		glyph := []rune(rest[i:])[0]
		rest = rest[i+len(string(glyph)):]
		label := rest
		if j := strings.IndexAny(rest, checkedGlyphs+uncheckedGlyphs); j >= 0 {
			label = rest[:j]
		}
		label = strings.TrimSpace(label)
		if label != "" && strings.ContainsRune(checkedGlyphs, glyph) {
			checked = append(checked, label)
		}
	}
	return checked, true
}

func parseTableProduct(line string) entity.TableProduct {
	if segs := pipeSegments(line); len(segs) >= 2 {
		return entity.TableProduct{Code: segs[0], Description: strings.Join(segs[1:], " ")}
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return entity.TableProduct{}
	}
	return entity.TableProduct{Code: fields[0], Description: strings.Join(fields[1:], " ")}
}

func renderTable(rows []entity.TableProduct) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		if r.Description == "" {
			lines[i] = r.Code
			continue
		}
		lines[i] = r.Code + " | " + r.Description
	}
	return strings.Join(lines, "\n")
}
