package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

var (
	productCodeRe = regexp.MustCompile(`^(\d{6})(?:\D|$)`)
	manifestRe    = regexp.MustCompile(`(?:^|\D)(\d{5})(?:\D|$)`)
	quantityRe    = regexp.MustCompile(`(?:^|[\s|])(\d{1,3})\s*$`)
	secondaryRe   = regexp.MustCompile(`WT-\d{1,2}/\d{1,2}-\d{2}`)
	nameSepRe     = regexp.MustCompile(`[|;\t]+`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// LineItemExtractor parses returned-goods manifest rows
type LineItemExtractor struct {
	classifier *Classifier
}

// NewLineItemExtractor creates an extractor; nil selects a classifier with the default stoplist
func NewLineItemExtractor(c *Classifier) *LineItemExtractor {
	if c == nil {
		c = NewClassifier(nil)
	}
	return &LineItemExtractor{classifier: c}
}

// ExtractLine parses one row such as "473440 Livarno tölcsérszűrőbetét kutyafül WT-38/1-25 43531 1".
// ok is false for noise and for rows without a product code or manifest number.
func (e *LineItemExtractor) ExtractLine(line string, seq int) (string, entity.LineItemDraft, bool) {
	line = strings.TrimSpace(line)
	if e.classifier.IsNoise(line) {
		return "", entity.LineItemDraft{}, false
	}

	code := productCodeRe.FindStringSubmatchIndex(line)
	if code == nil {
		return "", entity.LineItemDraft{}, false
	}
	codeEnd := code[3]

	m := manifestRe.FindStringSubmatchIndex(line[codeEnd:])
	if m == nil {
		return "", entity.LineItemDraft{}, false
	}
	manStart, manEnd := codeEnd+m[2], codeEnd+m[3]

	qty := 0
	if q := quantityRe.FindStringSubmatchIndex(line); q != nil && q[2] >= manEnd {
		qty = atoi(line[q[2]:q[3]])
	}

	nameEnd := manStart
	if wt := secondaryRe.FindStringIndex(line[codeEnd:]); wt != nil && codeEnd+wt[0] < manStart {
		nameEnd = codeEnd + wt[0]
	}

	draft := entity.LineItemDraft{
		ProductCode: line[code[2]:code[3]],
		ProductName: cleanName(line[codeEnd:nameEnd]),
		ExpectedQty: qty,
		Sequence:    seq,
	}
	return line[manStart:manEnd], draft, true
}

// ExtractLines parses every row and groups the drafts by manifest number.
// Sequence numbers start at startSeq and count successful rows only; the next free number is returned.
func (e *LineItemExtractor) ExtractLines(lines []string, startSeq int) (entity.PageResult, int) {
	b := newGroupBuilder()
	seq := startSeq
	for _, line := range lines {
		manifest, draft, ok := e.ExtractLine(line, seq)
		if !ok {
			continue
		}
		b.add(manifest, draft)
		seq++
	}
	return b.result(), seq
}

// FromVision converts model-typed rows into drafts. Malformed fields are reported as warnings
// and the rows are kept.
func (e *LineItemExtractor) FromVision(items []VisionLineItem, startSeq int) (entity.PageResult, []ValidationWarning, int) {
	b := newGroupBuilder()
	seq := startSeq
	var warnings []ValidationWarning
	for i, it := range items {
		warnings = append(warnings, ValidateLineItem(i, it)...)
		b.add(strings.TrimSpace(string(it.ManifestNumber)), entity.LineItemDraft{
			ProductCode: strings.TrimSpace(string(it.ProductCode)),
			ProductName: cleanName(CorrectText(it.ProductName)),
			ExpectedQty: it.ExpectedQty.Value,
			Sequence:    seq,
		})
		seq++
	}
	return b.result(), warnings, seq
}

func cleanName(s string) string {
	s = nameSepRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " -:,")
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// groupBuilder collects drafts per manifest number in arrival order
type groupBuilder struct {
	index  map[string]int
	groups entity.PageResult
}

func newGroupBuilder() *groupBuilder {
	return &groupBuilder{index: make(map[string]int)}
}

func (b *groupBuilder) add(manifest string, d entity.LineItemDraft) {
	i, ok := b.index[manifest]
	if !ok {
		i = len(b.groups)
		b.index[manifest] = i
		b.groups = append(b.groups, entity.ManifestGroup{ManifestNumber: manifest})
	}
	b.groups[i].Items = append(b.groups[i].Items, d)
}

func (b *groupBuilder) result() entity.PageResult {
	sort.SliceStable(b.groups, func(i, j int) bool {
		return b.groups[i].ManifestNumber < b.groups[j].ManifestNumber
	})
	return b.groups
}
