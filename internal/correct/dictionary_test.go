package correct

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/doccam-ocr/internal/errs"
)

func TestLoadDictionary(t *testing.T) {
	path := writeWordList(t, "# comment", "Hello", "", "  World  ", "a", "hello")

	d, err := LoadDictionary(path, []string{"Camera"})
	require.NoError(t, err)
	assert.Equal(t, []string{"camera", "hello", "world"}, d.Words())
	assert.Equal(t, path, d.Source())
}

func TestLoadDictionary_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n\nx\n"), 0644))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.txt")},
		{"directory", dir},
		{"no usable words", empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LoadDictionary(tt.path, nil)
			assert.Nil(t, d)
			assert.True(t, errors.Is(err, errs.DictionaryLoadError), "got %v", err)
		})
	}
}

func TestNew_UnreadableDictionary(t *testing.T) {
	opts := DefaultOptions()
	opts.DictionaryPath = filepath.Join(t.TempDir(), "nope.txt")

	c, err := New(opts)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, errs.DictionaryLoadError))
}

func TestFallbackDictionary(t *testing.T) {
	d := FallbackDictionary(DefaultCustomWords)
	assert.True(t, d.Has("people"))
	assert.True(t, d.Has("camera"))
	assert.False(t, d.Has("a"), "single letters are dropped")
	assert.Equal(t, "fallback", d.Source())
}

func TestContains_Variations(t *testing.T) {
	d := NewDictionary([]string{"work", "make", "love", "happy", "quick", "kind", "read"}, "test")

	tests := []struct {
		word string
		want bool
	}{
		{"work", true},
		{"WORK", true},
		{"works", true},
		{"working", true},
		{"making", true},
		{"worked", true},
		{"loved", true},
		{"worker", true},
		{"quickly", true},
		{"kindness", true},
		{"reads", true},
		{"happiness", false},
		{"worky", false},
		{"wo", false},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Contains(tt.word))
		})
	}
}
