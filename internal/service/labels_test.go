package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-clip-classifier/internal/port"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"blank", "   ", nil},
		{"json", `[" cat ", "dog", "", 3]`, []string{"cat", "dog", "3"}},
		{"comma", "cat, dog ,, bird", []string{"cat", "dog", "bird"}},
		{"newline", "cat, black\ndog\n\n", []string{"cat, black", "dog"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabels(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabels_MalformedJSON(t *testing.T) {
	_, err := ParseLabels(`["cat", "dog"`)
	assert.ErrorIs(t, err, port.ErrInvalidLabels)
}

func TestNormalizeLabels(t *testing.T) {
	got, err := NormalizeLabels([]string{" Cat", "cat", "", "Dog", "CAT "}, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cat", "Dog"}, got)

	got, err = NormalizeLabels(nil, []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = NormalizeLabels([]string{" ", ""}, []string{"a"}, 10)
	assert.ErrorIs(t, err, port.ErrEmptyLabels)
}

func TestPickNSFWLabel(t *testing.T) {
	assert.Equal(t, "Adult explicit content", PickNSFWLabel([]string{"cat", "Adult explicit content", "nsfw content"}))
	assert.Equal(t, "", PickNSFWLabel([]string{"cat", "dog"}))
}

func TestNormalizeTheme(t *testing.T) {
	assert.Equal(t, "beach day", NormalizeTheme("  Beach Day "))
	assert.Len(t, []rune(NormalizeTheme(strings.Repeat("á", 300))), 120)
	assert.Equal(t, "", NormalizeTheme("   "))
}

func TestLoadDefaultLabels(t *testing.T) {
	assert.Equal(t, []string{"cat", "dog"}, LoadDefaultLabels(`["cat","dog"]`, ""))

	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("sunset\nbeach\n"), 0o600))
	assert.Equal(t, []string{"sunset", "beach"}, LoadDefaultLabels("", path))

	assert.Equal(t, BuiltinDefaultLabels, LoadDefaultLabels("", filepath.Join(t.TempDir(), "missing.txt")))
}
