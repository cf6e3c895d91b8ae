package correct

import "fmt"

// MinLength is the shortest token the corrector will touch.
const MinLength = 3

// Aggressiveness controls how readily tokens are replaced.
type Aggressiveness struct {
	// MaxDistance is the largest edit distance a replacement may have.
	MaxDistance int `yaml:"max_distance" json:"max_distance"`

	// ConfidenceBelow: tokens the engine was at least this confident about
	// are left alone.
	ConfidenceBelow float64 `yaml:"confidence_below" json:"confidence_below"`
}

// Aggressiveness presets.
var (
	Conservative = Aggressiveness{MaxDistance: 1, ConfidenceBelow: 0.6}
	Moderate     = Aggressiveness{MaxDistance: 2, ConfidenceBelow: 0.9}
	Aggressive   = Aggressiveness{MaxDistance: 2, ConfidenceBelow: 1.01}
)

// AggressivenessPresets maps preset names to values.
var AggressivenessPresets = map[string]Aggressiveness{
	"conservative": Conservative,
	"moderate":     Moderate,
	"aggressive":   Aggressive,
}

// DefaultCustomWords are always added to the dictionary.
var DefaultCustomWords = []string{
	"homo", "deus", "yuval", "harari", "history", "tomorrow", "brief",
	"document", "camera", "ocr", "york", "university",
}

// Options configures the corrector.
type Options struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DictionaryPath is a word list, one word per line. Empty uses the
	// built-in fallback list.
	DictionaryPath string   `yaml:"dictionary_path" json:"dictionary_path"`
	CustomWords    []string `yaml:"custom_words" json:"custom_words"`

	Aggressiveness Aggressiveness `yaml:"aggressiveness" json:"aggressiveness"`

	// TrainingPath is the JSON file of accepted texts. Empty disables the
	// store.
	TrainingPath          string  `yaml:"training_path" json:"training_path"`
	MinTrainingConfidence float64 `yaml:"min_training_confidence" json:"min_training_confidence"`
}

// DefaultOptions returns moderate correction with the fallback dictionary.
func DefaultOptions() Options {
	return Options{
		Enabled:               true,
		CustomWords:           append([]string(nil), DefaultCustomWords...),
		Aggressiveness:        Moderate,
		MinTrainingConfidence: 0.6,
	}
}

// Validate checks the aggressiveness and training threshold ranges.
func (o Options) Validate() error {
	if o.Aggressiveness.MaxDistance < 1 || o.Aggressiveness.MaxDistance > 3 {
		return fmt.Errorf("max distance %d outside [1, 3]", o.Aggressiveness.MaxDistance)
	}
	if o.Aggressiveness.ConfidenceBelow < 0 {
		return fmt.Errorf("confidence threshold %g is negative", o.Aggressiveness.ConfidenceBelow)
	}
	if o.MinTrainingConfidence < 0 || o.MinTrainingConfidence > 1 {
		return fmt.Errorf("min training confidence %g outside [0, 1]", o.MinTrainingConfidence)
	}
	return nil
}
