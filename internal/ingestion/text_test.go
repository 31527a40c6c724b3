package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "only whitespace", input: "  \n\t\n  ", want: ""},
		{name: "collapses inner spaces", input: "Line    with \t  spaces", want: "Line with spaces"},
		{name: "line endings", input: "a\r\nb\rc\nd", want: "a\nb\nc\nd"},
		{name: "blank line runs", input: "a\n\n\n\n\nb", want: "a\n\nb"},
		{name: "trailing whitespace", input: "a   \nb\t", want: "a\nb"},
		{name: "bullets", input: "- Go\n*   SQL\n•  React", want: "- Go\n* SQL\n• React"},
		{name: "indentation kept", input: "Experience\n    Senior   Engineer", want: "Experience\n    Senior Engineer"},
		{name: "nul bytes", input: "Py\x00thon", want: "Python"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestCleanText_Deterministic(t *testing.T) {
	input := "Test content   with   spaces\n\n\nMultiple   blank   lines"
	assert.Equal(t, CleanText(input), CleanText(input))
}

func TestCleanText_Idempotent(t *testing.T) {
	input := "  Header\n\n\n-   item one\n  body    text  \r\n"
	once := CleanText(input)
	assert.Equal(t, once, CleanText(once))
}
