package extraction

import "strings"

// DefaultEmoji is used when no topic keyword matches
const DefaultEmoji = "📋"

var emojiKeywords = []struct {
	keywords []string
	emoji    string
}{
	{[]string{"baby", "esl"}, "🍼"},
	{[]string{"hűtő", "hűtött"}, "🧊"},
	{[]string{"szaloncukor"}, "🍬"},
	{[]string{"élelmiszer", "termék"}, "🛒"},
	{[]string{"kassa", "kassza", "pénz"}, "💰"},
	{[]string{"mystery", "ellenőrzés"}, "🔍"},
	{[]string{"raktár", "készlet"}, "📦"},
	{[]string{"dekoráció", "karácsony"}, "🎄"},
	{[]string{"magazin", "újság"}, "📰"},
	{[]string{"display", "mpk"}, "📺"},
	{[]string{"akció", "kedvezmény"}, "🏷️"},
	{[]string{"training", "tréner", "oktatás"}, "📚"},
	{[]string{"határidő", "időpont"}, "⏰"},
	{[]string{"figyelem", "fontos"}, "⚠️"},
	{[]string{"statisztika", "adat"}, "📊"},
}

// FallbackEmoji picks an emoji for a bulletin topic by keyword, first match wins
func FallbackEmoji(topic string) string {
	folded := Fold(topic)
	for _, e := range emojiKeywords {
		for _, k := range e.keywords {
			if strings.Contains(folded, Fold(k)) {
				return e.emoji
			}
		}
	}
	return DefaultEmoji
}
