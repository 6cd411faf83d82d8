package markup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatdigest/chatdigest/internal/markup"
)

func TestToWhatsApp_Conversions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bold",
			input: "**bold**",
			want:  "*bold*",
		},
		{
			name:  "italic",
			input: "__it__",
			want:  "_it_",
		},
		{
			name:  "strikethrough",
			input: "~~gone~~",
			want:  "~gone~",
		},
		{
			name:  "inline code",
			input: "`code`",
			want:  "```code```",
		},
		{
			name:  "soft line break",
			input: "line one  \nline two",
			want:  "line one\nline two",
		},
		{
			name:  "blank lines collapse to one newline",
			input: "paragraphe un\n\n\nparagraphe deux",
			want:  "paragraphe un\nparagraphe deux",
		},
		{
			name:  "mixed markers in one sentence",
			input: "un **point** sur `go test` et __la suite__",
			want:  "un *point* sur ```go test``` et _la suite_",
		},
		{
			name:  "multiple occurrences",
			input: "**a** and **b**",
			want:  "*a* and *b*",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, markup.ToWhatsApp(tt.input))
		})
	}
}

func TestToWhatsApp_IdempotentOnCleanText(t *testing.T) {
	// Text containing none of the source patterns must pass through
	// unchanged, so applying the conversion twice is a no-op.
	clean := "Résumé: *déjà* en _markup_ WhatsApp, ~rien~ à changer.\nNouvelle ligne."

	once := markup.ToWhatsApp(clean)
	assert.Equal(t, clean, once)
	assert.Equal(t, once, markup.ToWhatsApp(once))
}

func TestToWhatsApp_ConvertedOutputIsStable(t *testing.T) {
	out := markup.ToWhatsApp("**gras** et __italique__")
	assert.Equal(t, out, markup.ToWhatsApp(out))
}
