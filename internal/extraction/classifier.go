package extraction

import (
	"regexp"
	"strings"
	"unicode"
)

// LineClass is the coarse kind of a recognized text line
type LineClass int

const (
	Noise LineClass = iota
	StructuredCandidate
	Prose
)

func (c LineClass) String() string {
	switch c {
	case Noise:
		return "noise"
	case StructuredCandidate:
		return "structured"
	case Prose:
		return "prose"
	default:
		return "unknown"
	}
}

// LabelKind identifies a labeled bulletin field
type LabelKind int

const (
	LabelNone LabelKind = iota
	LabelTopic
	LabelAudience
	LabelDeadline
	LabelBody
)

// DefaultNoiseTokens are header and brand-section markers found on store documents
var DefaultNoiseTokens = []string{
	"bizonylat",
	"cikkszám",
	"cikk megnevezés",
	"elvi készlet",
	"parkside",
	"plu kw",
}

// labelRe runs on folded text. The deadline label tolerates OCR variants such as "Határideő".
var labelRe = regexp.MustCompile(`^[^\p{L}\p{N}]*(temak?|erintett[a-z]*|hatarid[a-z]*|tartalom)\s*:`)

// Classifier sorts recognized lines into noise, structured candidates and prose.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	noise []string
}

// NewClassifier creates a classifier with the given stoplist; nil selects DefaultNoiseTokens
func NewClassifier(noiseTokens []string) *Classifier {
	if noiseTokens == nil {
		noiseTokens = DefaultNoiseTokens
	}
	folded := make([]string, 0, len(noiseTokens))
	for _, t := range noiseTokens {
		if t = strings.TrimSpace(t); t != "" {
			folded = append(folded, Fold(t))
		}
	}
	return &Classifier{noise: folded}
}

// Classify returns the class of a single line
func (c *Classifier) Classify(line string) LineClass {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Noise
	}
	if _, _, ok := c.Label(trimmed); ok {
		return StructuredCandidate
	}
	if c.IsNoise(trimmed) {
		return Noise
	}
	if IsTableLine(trimmed) {
		return StructuredCandidate
	}
	return Prose
}

// IsNoise reports whether the line is empty or contains a stoplist token
func (c *Classifier) IsNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	folded := Fold(trimmed)
	for _, tok := range c.noise {
		if strings.Contains(folded, tok) {
			return true
		}
	}
	return false
}

// Label detects a "<label>:" line and returns its kind and the inline value after the colon
func (c *Classifier) Label(line string) (LabelKind, string, bool) {
	trimmed := strings.TrimSpace(line)
	m := labelRe.FindStringSubmatch(Fold(trimmed))
	if m == nil {
		return LabelNone, "", false
	}

	var kind LabelKind
	switch word := m[1]; {
	case strings.HasPrefix(word, "tema"):
		kind = LabelTopic
	case strings.HasPrefix(word, "erintett"):
		kind = LabelAudience
	case strings.HasPrefix(word, "hatarid"):
		kind = LabelDeadline
	default:
		kind = LabelBody
	}

	// Folding keeps the colon, and the label word has none, so the first colon of the raw line is the separator.
	value := ""
	if i := strings.IndexRune(trimmed, ':'); i >= 0 {
		value = strings.TrimSpace(trimmed[i+1:])
	}
	return kind, value, true
}

// IsTableLine reports whether a line looks like a table row: a leading numeric token of at
// least five digits, or two or more non-empty "|"-separated segments.
func IsTableLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if len(pipeSegments(trimmed)) >= 2 {
		return true
	}
	first := strings.FieldsFunc(trimmed, func(r rune) bool { return unicode.IsSpace(r) || r == '|' })
	return len(first) > 0 && len(first[0]) >= 5 && isDigits(first[0])
}

func pipeSegments(line string) []string {
	if !strings.Contains(line, "|") {
		return nil
	}
	var segs []string
	for _, s := range strings.Split(line, "|") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
