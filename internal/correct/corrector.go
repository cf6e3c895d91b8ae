package correct

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"
	"github.com/sajari/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ironsheep/doccam-ocr/internal/logging"
	"github.com/ironsheep/doccam-ocr/internal/ocr"
)

// Token is one recognised word after correction.
type Token struct {
	// Original is the token as recognised, punctuation included.
	Original string `json:"original"`

	// Text is the token after correction; equal to Original when unchanged.
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Corrected  bool    `json:"corrected,omitempty"`

	// Distance is the edit distance of the replacement, 0 when unchanged.
	Distance int `json:"distance,omitempty"`
}

// CorrectedLine is an ordered run of tokens.
type CorrectedLine struct {
	Tokens []Token `json:"tokens"`
}

// Text joins the corrected tokens with single spaces.
func (l CorrectedLine) Text() string {
	parts := make([]string, len(l.Tokens))
	for i, t := range l.Tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// CorrectedText is the corrected form of an ocr.Result. It has the same
// number of lines, and of tokens per line, as its source.
type CorrectedText struct {
	Lines       []CorrectedLine `json:"lines"`
	Corrections int             `json:"corrections"`
}

// Text returns the corrected text, one line per row.
func (c *CorrectedText) Text() string {
	rows := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		rows[i] = l.Text()
	}
	return strings.Join(rows, "\n")
}

// TokenCount returns the number of tokens across all lines.
func (c *CorrectedText) TokenCount() int {
	n := 0
	for _, l := range c.Lines {
		n += len(l.Tokens)
	}
	return n
}

// Suggestion is a candidate replacement and its edit distance.
type Suggestion struct {
	Word     string `json:"word"`
	Distance int    `json:"distance"`
}

// Corrector replaces misspelled tokens with dictionary words.
type Corrector struct {
	dict   *Dictionary
	aggr   Aggressiveness
	logger zerolog.Logger

	mu    sync.RWMutex
	model *fuzzy.Model
}

// New loads the configured dictionary and trains the suggestion model. With
// no dictionary path the fallback list is used.
func New(opts Options) (*Corrector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var dict *Dictionary
	if opts.DictionaryPath == "" {
		dict = FallbackDictionary(opts.CustomWords)
	} else {
		var err error
		dict, err = LoadDictionary(opts.DictionaryPath, opts.CustomWords)
		if err != nil {
			return nil, err
		}
	}
	return NewWithDictionary(dict, opts.Aggressiveness), nil
}

// NewWithDictionary builds a corrector over an already loaded dictionary.
func NewWithDictionary(dict *Dictionary, aggr Aggressiveness) *Corrector {
	depth := aggr.MaxDistance
	if depth < 1 {
		depth = 1
	}
	model := fuzzy.NewModel()
	model.SetThreshold(1)
	model.SetDepth(depth)
	model.SetUseAutocomplete(false)
	model.Train(dict.Words())

	c := &Corrector{
		dict:   dict,
		aggr:   aggr,
		model:  model,
		logger: logging.Component("correct"),
	}
	c.logger.Debug().
		Str("dictionary", dict.Source()).
		Int("words", dict.Len()).
		Int("max_distance", aggr.MaxDistance).
		Float64("confidence_below", aggr.ConfidenceBelow).
		Msg("Corrector ready")
	return c
}

// Dictionary returns the loaded dictionary.
func (c *Corrector) Dictionary() *Dictionary { return c.dict }

// Aggressiveness returns the configured aggressiveness.
func (c *Corrector) Aggressiveness() Aggressiveness { return c.aggr }

// Learn feeds words into the suggestion model so they can be proposed as
// replacements. The dictionary itself is unchanged.
func (c *Corrector) Learn(words []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range words {
		w = strings.ToLower(w)
		if utf8.RuneCountInString(w) >= 2 {
			c.model.TrainWord(w)
		}
	}
}

// Suggest returns up to n candidates for word within the configured
// distance, closest first. Among equal distances, candidates of the same
// length as word come first, then alphabetical order.
func (c *Corrector) Suggest(word string, n int) []Suggestion {
	w := strings.ToLower(word)

	c.mu.RLock()
	raw := c.model.Suggestions(w, true)
	c.mu.RUnlock()

	wordLen := utf8.RuneCountInString(w)
	out := make([]Suggestion, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, cand := range raw {
		if cand == w || seen[cand] {
			continue
		}
		seen[cand] = true
		d := levenshtein.ComputeDistance(w, cand)
		if d > c.aggr.MaxDistance {
			continue
		}
		out = append(out, Suggestion{Word: cand, Distance: d})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		aSame := utf8.RuneCountInString(a.Word) == wordLen
		bSame := utf8.RuneCountInString(b.Word) == wordLen
		if aSame != bSame {
			return aSame
		}
		return a.Word < b.Word
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Correctable reports whether a bare word is a candidate for correction:
// long enough, containing a letter and not already known.
func (c *Corrector) Correctable(core string) bool {
	if utf8.RuneCountInString(core) < MinLength {
		return false
	}
	if strings.IndexFunc(core, unicode.IsLetter) < 0 {
		return false
	}
	return !c.dict.Contains(core)
}

// CorrectWord corrects a single token recognised with the given
// confidence. Leading and trailing punctuation is kept and the token's
// capitalisation is reapplied to the replacement.
func (c *Corrector) CorrectWord(token string, confidence float64) Token {
	t := Token{Original: token, Text: token, Confidence: confidence}

	prefix, core, suffix := splitPunct(token)
	if !c.Correctable(core) || confidence >= c.aggr.ConfidenceBelow {
		return t
	}

	suggestions := c.Suggest(core, 1)
	if len(suggestions) == 0 {
		return t
	}
	best := suggestions[0]

	t.Text = prefix + matchCase(core, best.Word) + suffix
	t.Corrected = t.Text != token
	t.Distance = best.Distance
	return t
}

// Correct corrects every word of an OCR result.
func (c *Corrector) Correct(result *ocr.Result) *CorrectedText {
	out := &CorrectedText{Lines: make([]CorrectedLine, 0)}
	if result == nil {
		return out
	}
	for _, line := range result.Lines {
		cl := CorrectedLine{Tokens: make([]Token, len(line.Words))}
		for i, w := range line.Words {
			cl.Tokens[i] = c.CorrectWord(w.Text, w.Confidence)
			if cl.Tokens[i].Corrected {
				out.Corrections++
				c.logger.Debug().
					Str("original", w.Text).
					Str("corrected", cl.Tokens[i].Text).
					Float64("confidence", w.Confidence).
					Msg("Corrected word")
			}
		}
		out.Lines = append(out.Lines, cl)
	}
	return out
}

// CorrectText corrects plain text. Lines are split on newlines and tokens on
// whitespace; every token is treated as confidence 0.
func (c *Corrector) CorrectText(text string) *CorrectedText {
	result := &ocr.Result{}
	if text != "" {
		for _, row := range strings.Split(text, "\n") {
			var line ocr.Line
			for _, f := range strings.Fields(row) {
				line.Words = append(line.Words, ocr.Word{Text: f})
			}
			result.Lines = append(result.Lines, line)
		}
	}
	return c.Correct(result)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// splitPunct splits a token into leading punctuation, the word and
// trailing punctuation.
func splitPunct(token string) (prefix, core, suffix string) {
	start := strings.IndexFunc(token, isWordRune)
	if start < 0 {
		return token, "", ""
	}
	end := strings.LastIndexFunc(token, isWordRune)
	_, size := utf8.DecodeRuneInString(token[end:])
	return token[:start], token[start : end+size], token[end+size:]
}

// matchCase gives replacement the capitalisation pattern of original:
// UPPER, Title or lower.
func matchCase(original, replacement string) string {
	letters, upper := 0, 0
	first := true
	firstUpper := false
	for _, r := range original {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
		if first {
			firstUpper = unicode.IsUpper(r)
			first = false
		}
	}

	switch {
	case letters > 1 && upper == letters:
		return cases.Upper(language.Und).String(replacement)
	case firstUpper:
		return cases.Title(language.Und).String(replacement)
	}
	return replacement
}
