package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```(?:json|JSON)?\\n?")

// StripFences removes Markdown code-fence markers from a model reply
func StripFences(reply string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(reply, ""))
}

// ParseModelReply decodes a model reply into v. When the whole reply is not valid JSON the first
// top-level JSON array inside it is tried. Failures wrap ErrParseFailure.
func ParseModelReply(reply string, v any) error {
	text := StripFences(reply)
	if text == "" {
		return fmt.Errorf("%w: empty reply", ErrParseFailure)
	}

	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}

	arr := extractJSONArray(text)
	if arr == "" {
		return fmt.Errorf("%w: no JSON array found in reply: %v", ErrParseFailure, err)
	}
	if err := json.Unmarshal([]byte(arr), v); err != nil {
		return fmt.Errorf("%w: failed to parse extracted JSON: %v", ErrParseFailure, err)
	}
	return nil
}

// extractJSONArray returns the first balanced [...] substring, honouring JSON strings
func extractJSONArray(content string) string {
	start := strings.IndexByte(content, '[')
	if start < 0 {
		return ""
	}
	end := findArrayEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

func findArrayEnd(content string, start int) int {
	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		c := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' && inString {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
