package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"label", "Tema: Baby ESL", "Téma: Baby ESL"},
		{"label upper", "TEMA: Baby", "TÉMA: Baby"},
		{"audience", "Erintett: Mindenki", "Érintett: Mindenki"},
		{"deadline", "Hatarido: pentek", "Határidő: péntek"},
		{"weekdays", "hetfo es csutortok, vasarnap zárva", "hétfő es csütörtök, vasárnap zárva"},
		{"words", "keszlet a feluletre, terulet", "készlet a felületre, terület"},
		{"cyrillic digit", "2025.11.1З", "2025.11.13"},
		{"cyrillic o next to digit", "2О25", "2025"},
		{"cyrillic o in word", "MОPRО", "MOPRO"},
		{"cyrillic letters", "ІTАLОK ЕSL", "ITALOK ESL"},
		{"tilde accents", "hûtõ Õsz", "hűtő Ősz"},
		{"already correct", "Határidő: csütörtök", "Határidő: csütörtök"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CorrectText(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CorrectText(got), "correction must be idempotent")
		})
	}
}

func TestFallbackEmoji(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"Baby ESL - Italos hűtő", "🍼"},
		{"Hűtött áru", "🧊"},
		{"Szaloncukor", "🍬"},
		{"Kassza zárás", "💰"},
		{"Raktár rend", "📦"},
		{"Karácsonyi dekoráció", "🎄"},
		{"MPK monitor", "📺"},
		{"Kedvezmény hétvége", "🏷️"},
		{"Tréner látogatás", "📚"},
		{"Fontos!", "⚠️"},
		{"Heti statisztika", "📊"},
		{"Egyéb", DefaultEmoji},
		{"", DefaultEmoji},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackEmoji(tt.topic))
		})
	}
}

func TestNormalize(t *testing.T) {
	in := "Téma:\tBaby   ESL\r\nÉrintett: Mindenki  \r\n\r\n\r\n\r\nvalami tartalom\n"
	assert.Equal(t, "Téma: Baby ESL\nÉrintett: Mindenki\n\nvalami tartalom", Normalize(in))
	assert.Nil(t, SplitLines("   "))
}
