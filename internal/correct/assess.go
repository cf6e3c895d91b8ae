package correct

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Quality labels.
const (
	QualityHigh   = "HIGH"
	QualityMedium = "MEDIUM"
	QualityLow    = "LOW"
	QualityPoor   = "POOR"
)

// KeepThreshold is the overall score below which a result is not worth
// keeping.
const KeepThreshold = 0.3

// Assessment scores how much recognised text looks like real language.
// All scores are in [0, 1].
type Assessment struct {
	Overall    float64 `json:"overall_confidence"`
	Quality    string  `json:"quality"`
	ShouldKeep bool    `json:"should_keep"`

	Word           float64 `json:"word_confidence"`
	Sequence       float64 `json:"sequence_confidence"`
	Length         float64 `json:"length_confidence"`
	Capitalization float64 `json:"capitalization_confidence"`

	// Validation is the weighted combination of the four scores above.
	Validation float64 `json:"validation_confidence"`

	Improvement float64 `json:"improvement_score"`
	Structure   float64 `json:"structure_score"`

	ValidWords int `json:"valid_word_count"`
	TotalWords int `json:"total_word_count"`
	Lines      int `json:"line_count"`

	CorrectedText string `json:"corrected_text"`
}

// Assess validates text against the dictionary, corrects it and combines
// the results into an overall score and quality label.
func (c *Corrector) Assess(text string) Assessment {
	a := Assessment{}
	c.validate(text, &a)

	corrected := c.CorrectText(text)
	a.CorrectedText = corrected.Text()
	correctable := 0
	for _, l := range corrected.Lines {
		for _, t := range l.Tokens {
			if _, core, _ := splitPunct(t.Original); c.Correctable(core) {
				correctable++
			}
		}
	}
	if correctable > 0 {
		a.Improvement = float64(corrected.Corrections) / float64(correctable)
	}

	var lineChars, lines int
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines++
		lineChars += utf8.RuneCountInString(l)
	}
	a.Lines = lines
	if lines > 0 {
		a.Structure = math.Min(float64(lineChars)/float64(lines)/60, 1)
	}

	a.Overall = round3(a.Validation*0.6 + a.Improvement*0.2 + a.Structure*0.2)
	a.Improvement = round3(a.Improvement)
	a.Structure = round3(a.Structure)
	a.Quality = qualityLabel(a.Overall)
	a.ShouldKeep = a.Overall >= KeepThreshold
	return a
}

func (c *Corrector) validate(text string, a *Assessment) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 3 {
		return
	}
	words := extractWords(text)
	if len(words) == 0 {
		return
	}

	valid := make([]bool, len(words))
	for i, w := range words {
		valid[i] = c.dict.Contains(w)
		if valid[i] {
			a.ValidWords++
		}
	}
	a.TotalWords = len(words)

	word := float64(a.ValidWords) / float64(len(words))
	sequence := sequenceScore(valid)
	length := lengthScore(words)
	capitalization := capitalizationScore(text)

	a.Word = round3(word)
	a.Sequence = round3(sequence)
	a.Length = round3(length)
	a.Capitalization = round3(capitalization)
	a.Validation = round3(word*0.5 + sequence*0.3 + length*0.1 + capitalization*0.1)
}

// extractWords lowercases text, splits on anything but letters, digits,
// underscores and hyphens, and drops single characters.
func extractWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-')
	})
	words := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			words = append(words, f)
		}
	}
	return words
}

// sequenceScore rewards long runs of valid words; an average run of five or
// more scores 1.
func sequenceScore(valid []bool) float64 {
	var runs []int
	current := 0
	for _, v := range valid {
		if v {
			current++
			continue
		}
		if current > 0 {
			runs = append(runs, current)
		}
		current = 0
	}
	if current > 0 {
		runs = append(runs, current)
	}
	if len(runs) == 0 {
		return 0
	}
	total := 0
	for _, r := range runs {
		total += r
	}
	return math.Min(float64(total)/float64(len(runs))/5, 1)
}

// lengthScore prefers an average word length between 4 and 8.
func lengthScore(words []string) float64 {
	if len(words) < 3 {
		return 0.2
	}
	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	avg := float64(total) / float64(len(words))
	if avg >= 4 && avg <= 8 {
		return 1
	}
	return math.Max(0.1, 1-math.Abs(avg-6)/10)
}

// capitalizationScore is the share of sentences starting with an upper case
// letter, 0.5 when there are none.
func capitalizationScore(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	total, valid := 0, 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) <= 1 {
			continue
		}
		total++
		if r, _ := utf8.DecodeRuneInString(s); unicode.IsUpper(r) {
			valid++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(valid) / float64(total)
}

func qualityLabel(overall float64) string {
	switch {
	case overall >= 0.8:
		return QualityHigh
	case overall >= 0.6:
		return QualityMedium
	case overall >= 0.4:
		return QualityLow
	}
	return QualityPoor
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
