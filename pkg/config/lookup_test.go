package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/domain"
)

const lookupTable = `
[rf_cal]
board_a = ("board_a", "base.cfg", 'bands.cfg')
board_b = ["board_b"]
Board_C = ("c1", "x.cfg")
board_c = ("c2", "y.cfg")
broken = ("folder", os.system("rm"))

[tpm]
board_a = ("tpm_a", "tpm.cfg")
`

func TestLookup_Resolve(t *testing.T) {
	l, err := ParseLookup("products.cfg", []byte(lookupTable))
	require.NoError(t, err)

	e, err := l.Resolve("rf_cal", "board_a")
	require.NoError(t, err)
	assert.Equal(t, Entry{Folder: "board_a", Files: []string{"base.cfg", "bands.cfg"}}, e)
	assert.Equal(t, []string{"board_a/base.cfg", "board_a/bands.cfg"}, e.Paths())

	e, err = l.Resolve("rf_cal", "BOARD_B")
	require.NoError(t, err)
	assert.Equal(t, "board_b", e.Folder)
	assert.Empty(t, e.Files)

	e, err = l.Resolve("tpm", "board_a")
	require.NoError(t, err)
	assert.Equal(t, "tpm_a", e.Folder)

	assert.Equal(t, []string{"rf_cal", "tpm"}, l.TestTypes())
	assert.Contains(t, l.Products("rf_cal"), "Board_C")
}

func TestLookup_Errors(t *testing.T) {
	l, err := ParseLookup("products.cfg", []byte(lookupTable))
	require.NoError(t, err)

	tests := []struct {
		name     string
		testType string
		product  string
		contains string
	}{
		{"ambiguous", "rf_cal", "board_c", "ambiguous"},
		{"unknown product", "rf_cal", "board_x", "unknown product"},
		{"unknown test type", "burn_in", "board_a", "no lookup section"},
		{"code is not executed", "rf_cal", "broken", "unsupported token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Resolve(tt.testType, tt.product)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLookup_DuplicateKeyIsAmbiguous(t *testing.T) {
	l, err := ParseLookup("dup.cfg", []byte("[rf_cal]\nboard = (\"a\",)\nboard = (\"b\",)\n"))
	require.NoError(t, err)

	_, err = l.Resolve("rf_cal", "board")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestParseLiteralSequence(t *testing.T) {
	tests := []struct {
		in   string
		want []any
	}{
		{`("a", 'b')`, []any{"a", "b"}},
		{`("single",)`, []any{"single"}},
		{`[0, 1, 2.5, True, None]`, []any{0, 1, 2.5, true, nil}},
		{`()`, []any{}},
		{`("with, comma", "esc\"aped")`, []any{"with, comma", `esc"aped`}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLiteralSequence(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLiteralSequence_Rejects(t *testing.T) {
	for _, in := range []string{
		``,
		`"a", "b"`,
		`("a", "b"`,
		`("a" "b")`,
		`("a",,)`,
		`(__import__("os"))`,
		`("unterminated)`,
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseLiteralSequence(in)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestParseList(t *testing.T) {
	got, err := ParseList("0, 1, 2")
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 2}, got)

	got, err = ParseList("low, mid, high")
	require.NoError(t, err)
	assert.Equal(t, []any{"low", "mid", "high"}, got)

	got, err = ParseList(`("a", 3)`)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 3}, got)
}
