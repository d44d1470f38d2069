package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type correction struct {
	re   *regexp.Regexp
	with string
}

// Ordered: label forms go before the bare words they contain.
var corrections = []correction{
	{regexp.MustCompile(`(?i)tema:`), "téma:"},
	{regexp.MustCompile(`(?i)erintett`), "érintett"},
	{regexp.MustCompile(`(?i)hatarido`), "határidő"},
	{regexp.MustCompile(`(?i)hetfo`), "hétfő"},
	{regexp.MustCompile(`(?i)csutortok`), "csütörtök"},
	{regexp.MustCompile(`(?i)pentek`), "péntek"},
	{regexp.MustCompile(`(?i)vasarnap`), "vasárnap"},
	{regexp.MustCompile(`(?i)keszlet`), "készlet"},
	{regexp.MustCompile(`(?i)terulet`), "terület"},
	{regexp.MustCompile(`(?i)feluletre`), "felületre"},
}

// lookalikes maps Cyrillic and tilde-accented runes that OCR produces for Hungarian text.
// Cyrillic О is handled separately since it can stand for a digit.
var lookalikes = map[rune]rune{
	'З': '3',
	'І': 'I',
	'А': 'A',
	'Е': 'E',
	'В': 'B',
	'С': 'C',
	'Н': 'H',
	'К': 'K',
	'М': 'M',
	'Р': 'P',
	'Т': 'T',
	'Х': 'X',
	'а': 'a',
	'е': 'e',
	'і': 'i',
	'о': 'o',
	'р': 'p',
	'с': 'c',
	'х': 'x',
	'õ': 'ő',
	'Õ': 'Ő',
	'ô': 'ő',
	'Ô': 'Ő',
	'û': 'ű',
	'Û': 'Ű',
}

// CorrectText repairs known OCR confusions in free text. It is deterministic and idempotent.
func CorrectText(s string) string {
	if s == "" {
		return s
	}
	s = replaceLookalikes(s)
	for _, c := range corrections {
		s = c.re.ReplaceAllStringFunc(s, func(match string) string {
			return matchCase(match, c.with)
		})
	}
	return s
}

func replaceLookalikes(s string) string {
	runes := []rune(s)
	changed := false
	for i, r := range runes {
		if r == 'О' {
			if nearDigit(runes, i) {
				runes[i] = '0'
			} else {
				runes[i] = 'O'
			}
			changed = true
			continue
		}
		if to, ok := lookalikes[r]; ok {
			runes[i] = to
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(runes)
}

func nearDigit(runes []rune, i int) bool {
	isNum := func(r rune) bool { return unicode.IsDigit(r) || r == '.' || r == 'З' }
	return (i > 0 && isNum(runes[i-1])) || (i+1 < len(runes) && isNum(runes[i+1]))
}

// matchCase applies the capitalization of the matched text to the replacement
func matchCase(match, repl string) string {
	if utf8.RuneCountInString(match) > 1 && strings.ToUpper(match) == match && strings.ToLower(match) != match {
		return strings.ToUpper(repl)
	}
	first, _ := utf8.DecodeRuneInString(match)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(repl)
		return string(unicode.ToUpper(r)) + repl[size:]
	}
	return repl
}
