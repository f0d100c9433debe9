package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

func TestDecodeCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "simple",
			input: "Name,Age\nAnn,30\nBob,41",
			want:  [][]string{{"Name", "Age"}, {"Ann", "30"}, {"Bob", "41"}},
		},
		{
			name:  "quoted comma",
			input: `"a,b",c`,
			want:  [][]string{{"a,b", "c"}},
		},
		{
			name:  "crlf line endings",
			input: "a,b\r\nc,d\r\n",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "cells trimmed",
			input: "  a , b  \n c,d",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "ragged rows kept",
			input: "a,b,c\nd\ne,f",
			want:  [][]string{{"a", "b", "c"}, {"d"}, {"e", "f"}},
		},
		{
			name:  "doubled quotes unescaped",
			input: `"say ""hi""",x`,
			want:  [][]string{{`say "hi"`, "x"}},
		},
		{
			name:  "quoted line break",
			input: "\"line1\nline2\",x\ny,z",
			want:  [][]string{{"line1\nline2", "x"}, {"y", "z"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  [][]string{{""}},
		},
		{
			name:  "whitespace only",
			input: " \n\t \r\n",
			want:  [][]string{{""}},
		},
		{
			name:  "bom stripped",
			input: "\xEF\xBB\xBFa,b",
			want:  [][]string{{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Rows())
		})
	}
}

func TestDecodeCSV_Legacy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "quoted comma",
			input: `"a,b",c`,
			want:  [][]string{{"a,b", "c"}},
		},
		{
			name:  "doubled quotes left as-is",
			input: `"say ""hi""",x`,
			want:  [][]string{{`say ""hi""`, "x"}},
		},
		{
			name:  "crlf",
			input: "a,b\r\nc,d",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "blank line kept as one empty cell",
			input: "a\n\nb",
			want:  [][]string{{"a"}, {""}, {"b"}},
		},
		{
			name:  "one quote stripped each side",
			input: `""x""`,
			want:  [][]string{{`"x"`}},
		},
		{
			name:  "quoted line break is not supported",
			input: "\"a\nb\"",
			want:  [][]string{{"a"}, {"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCSV(strings.NewReader(tt.input), LegacyCSV())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Rows())
		})
	}
}

func TestDecodeCSV_UnclosedQuote(t *testing.T) {
	input := "Name,Age\nAnn,\"5\" pipe\nBob,7"

	// A field that opens with a quote and never closes it runs to the end of
	// the input. LazyQuotes keeps this from being an error.
	got, err := DecodeCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Ann", "5\" pipe\nBob,7"}}, got.Rows())

	// The line splitter never looks past a line break.
	got, err = DecodeCSV(strings.NewReader(input), LegacyCSV())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Ann", "5\" pipe"}, {"Bob", "7"}}, got.Rows())
}

func TestEncodeCSV(t *testing.T) {
	tbl := sheet.New([][]string{
		{"Name", "Quote"},
		{"Ann", `she said "hi"`},
		{"", "a,b"},
	})

	want := "\"Name\",\"Quote\"\n\"Ann\",\"she said \"\"hi\"\"\"\n\"\",\"a,b\""
	assert.Equal(t, want, EncodeCSV(tbl))
}

func TestEncodeCSV_EmptyTable(t *testing.T) {
	assert.Equal(t, "", EncodeCSV(sheet.New(nil)))
}

func TestCSVRoundTrip(t *testing.T) {
	rows := [][]string{
		{"Name", "Age", "City"},
		{"Ann", "30", "Rome"},
		{"Bob", "", "Oslo, Norway"},
		{"Carol"},
	}

	t.Run("legacy", func(t *testing.T) {
		got, err := DecodeCSV(strings.NewReader(EncodeCSV(sheet.New(rows))), LegacyCSV())
		require.NoError(t, err)
		assert.Equal(t, rows, got.Rows())
	})

	t.Run("default with quotes", func(t *testing.T) {
		quoted := append(rows, []string{`5" pipe`, `"quoted"`})
		got, err := DecodeCSV(strings.NewReader(EncodeCSV(sheet.New(quoted))))
		require.NoError(t, err)
		assert.Equal(t, quoted, got.Rows())
	})
}
