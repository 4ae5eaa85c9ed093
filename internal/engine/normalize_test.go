package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain name", input: "Juan García", want: "JUAN GARCIA"},
		{name: "already uppercase", input: "JUAN GARCIA", want: "JUAN GARCIA"},
		{name: "heavy diacritics", input: "José Ramón Muñoz Peñalver", want: "JOSE RAMON MUNOZ PENALVER"},
		{name: "punctuation becomes spaces", input: "GARCIA-LOPEZ, JUAN", want: "GARCIA LOPEZ JUAN"},
		{name: "digits dropped", input: "GARCIA 12345", want: "GARCIA"},
		{name: "whitespace collapsed", input: "  JUAN    GARCIA  ", want: "JUAN GARCIA"},
		{name: "empty", input: "", want: ""},
		{name: "only digits", input: "12345", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}

func TestNameAppearsIn(t *testing.T) {
	tests := []struct {
		name    string
		concept string
		payer   string
		want    bool
	}{
		{
			name:    "statement order LAST FIRST",
			concept: "GARCIA JUAN    123 - Spring Campaign",
			payer:   "Juan García",
			want:    true,
		},
		{
			name:    "accents only on the payer side",
			concept: "TRANSF MUNOZ PENALVER JOSE",
			payer:   "José Muñoz Peñalver",
			want:    true,
		},
		{
			name:    "partial name is not enough",
			concept: "TRANSF GARCIA 123",
			payer:   "Juan García",
			want:    false,
		},
		{
			name:    "different payer",
			concept: "LOPEZ MARIA 123",
			payer:   "Juan García",
			want:    false,
		},
		{
			name:    "empty payer name never matches",
			concept: "GARCIA JUAN 123",
			payer:   "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nameAppearsIn(tt.concept, tt.payer))
		})
	}
}

func TestDigitTokens(t *testing.T) {
	tokens := digitTokens("GARCIA JUAN    482 - Spring Campaign ref 2026")
	assert.True(t, tokens[482])
	assert.True(t, tokens[2026])
	assert.False(t, tokens[48])
	assert.Empty(t, digitTokens("no digits here"))
}
