package correct

import (
	"bufio"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ironsheep/doccam-ocr/internal/errs"
)

// fallbackWords is used when no word list is configured.
var fallbackWords = []string{
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
	"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
	"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
	"or", "an", "will", "my", "one", "all", "would", "there", "their", "what",
	"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
	"when", "make", "can", "like", "time", "no", "just", "him", "know", "take",
	"people", "into", "year", "your", "good", "some", "could", "them", "see",
	"other", "than", "then", "now", "look", "only", "come", "its", "over", "think",
	"also", "back", "after", "use", "two", "how", "our", "work", "first", "well",
	"way", "even", "new", "want", "because", "any", "these", "give", "day", "most", "us",
}

// Dictionary is a read-only set of lowercase words.
type Dictionary struct {
	words  map[string]struct{}
	source string
}

// NewDictionary builds a dictionary from words. Words are lowercased and
// those shorter than two runes are dropped.
func NewDictionary(words []string, source string) *Dictionary {
	d := &Dictionary{words: make(map[string]struct{}, len(words)), source: source}
	d.add(words)
	return d
}

// FallbackDictionary returns the built-in list plus custom words.
func FallbackDictionary(custom []string) *Dictionary {
	d := NewDictionary(fallbackWords, "fallback")
	d.add(custom)
	return d
}

// LoadDictionary reads a word list, one word per line. Lines starting with
// '#' are comments. custom words are added after the file.
//
// A file that cannot be read or holds no usable words yields a
// DictionaryLoadError.
func LoadDictionary(path string, custom []string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.DictionaryLoadError, "load dictionary", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.E(errs.DictionaryLoadError, "load dictionary", err)
	}

	d := NewDictionary(words, path)
	if d.Len() == 0 {
		return nil, errs.Errorf(errs.DictionaryLoadError, "load dictionary", "%s contains no words", path)
	}
	d.add(custom)
	return d, nil
}

func (d *Dictionary) add(words []string) {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		d.words[w] = struct{}{}
	}
}

// Source is the word list path or "fallback".
func (d *Dictionary) Source() string { return d.source }

// Len returns the number of words.
func (d *Dictionary) Len() int { return len(d.words) }

// Words returns the words in alphabetical order.
func (d *Dictionary) Words() []string {
	out := make([]string, 0, len(d.words))
	for w := range d.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Has reports an exact (case-insensitive) entry.
func (d *Dictionary) Has(word string) bool {
	_, ok := d.words[strings.ToLower(word)]
	return ok
}

// Contains reports whether word is in the dictionary or is a common
// inflection of an entry: plural s, -ing (also dropping a final e), -ed
// (also keeping a final e), -er, -ly and -ness.
func (d *Dictionary) Contains(word string) bool {
	w := strings.ToLower(word)
	if d.Has(w) {
		return true
	}
	if len(w) < 3 {
		return false
	}

	switch {
	case strings.HasSuffix(w, "s") && d.Has(w[:len(w)-1]):
		return true
	case strings.HasSuffix(w, "ing") && (d.Has(w[:len(w)-3]) || d.Has(w[:len(w)-3]+"e")):
		return true
	case strings.HasSuffix(w, "ed") && (d.Has(w[:len(w)-2]) || d.Has(w[:len(w)-1])):
		return true
	case strings.HasSuffix(w, "er") && d.Has(w[:len(w)-2]):
		return true
	case strings.HasSuffix(w, "ly") && d.Has(w[:len(w)-2]):
		return true
	case strings.HasSuffix(w, "ness") && d.Has(w[:len(w)-4]):
		return true
	}
	return false
}
