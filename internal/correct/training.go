package correct

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// trainingFile is the on-disk layout of the training store.
type trainingFile struct {
	TrainingTexts []string `json:"training_texts"`
}

// TrainingStore keeps corrected texts that scored well enough and feeds
// their words back into the corrector's suggestion model.
type TrainingStore struct {
	path      string
	corrector *Corrector

	mu   sync.Mutex
	data trainingFile
}

// OpenTrainingStore loads the store at path, creating none until the first
// text is accepted. Words of stored texts are learned immediately.
func OpenTrainingStore(path string, c *Corrector) (*TrainingStore, error) {
	s := &TrainingStore{path: path, corrector: c}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read training data: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse training data %s: %w", path, err)
	}
	for _, text := range s.data.TrainingTexts {
		c.Learn(extractWords(text))
	}
	c.logger.Debug().Str("path", path).Int("texts", len(s.data.TrainingTexts)).Msg("Loaded training data")
	return s, nil
}

// Add assesses text and, when its overall score reaches minConfidence,
// stores the corrected form and learns its words. It reports whether the
// text was accepted.
func (s *TrainingStore) Add(text string, minConfidence float64) (bool, Assessment, error) {
	a := s.corrector.Assess(text)
	if a.Overall < minConfidence {
		return false, a, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := trainingFile{TrainingTexts: append(append([]string(nil), s.data.TrainingTexts...), a.CorrectedText)}
	if err := writeJSON(s.path, next); err != nil {
		return false, a, err
	}
	s.data = next
	s.corrector.Learn(extractWords(a.CorrectedText))
	return true, a, nil
}

// Texts returns the accepted texts in insertion order.
func (s *TrainingStore) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data.TrainingTexts...)
}

// writeJSON replaces path with the indented encoding of v.
func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode training data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create training directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".training-*.json")
	if err != nil {
		return fmt.Errorf("failed to write training data: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write training data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write training data: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write training data: %w", err)
	}
	return nil
}
