// Package correct repairs recognised text against a word list.
//
// For every recognised token the corrector checks the dictionary. A token
// that is missing, has low engine confidence and lies within a small edit
// distance of a known word is replaced by that word. Suggestions come from a
// sajari/fuzzy model trained on the dictionary and are re-ranked by
// Levenshtein distance.
//
// Correction never adds, drops or reorders tokens: a CorrectedText has the
// same lines and the same number of tokens per line as the ocr.Result it
// came from. Only token text changes.
//
// The package also scores text quality (Assess) and keeps a store of
// accepted texts (TrainingStore) whose words are fed back into the
// suggestion model.
package correct
