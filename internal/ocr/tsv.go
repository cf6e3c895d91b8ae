package ocr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ironsheep/doccam-ocr/internal/errs"
)

// tsvColumns is the header Tesseract writes for tsv output.
var tsvColumns = []string{
	"level", "page_num", "block_num", "par_num", "line_num", "word_num",
	"left", "top", "width", "height", "conf", "text",
}

// wordLevel is the TSV level of word rows.
const wordLevel = 5

type lineKey struct {
	page, block, par, line int
}

// ParseTSV parses Tesseract TSV output into a Result.
//
// Word rows (level 5) with non-blank text are grouped into lines by page,
// block, paragraph and line number, preserving the order in which the
// engine reported them. Confidences are divided by 100.
//
// A missing or unexpected header, a row with the wrong number of columns or
// a non-numeric field yields a RecognitionError.
func ParseTSV(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errs.E(errs.RecognitionError, "parse tsv", err)
		}
		return nil, errs.Errorf(errs.RecognitionError, "parse tsv", "empty output")
	}
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	if len(header) != len(tsvColumns) {
		return nil, errs.Errorf(errs.RecognitionError, "parse tsv", "header has %d columns, want %d", len(header), len(tsvColumns))
	}
	for i, name := range tsvColumns {
		if strings.TrimSpace(header[i]) != name {
			return nil, errs.Errorf(errs.RecognitionError, "parse tsv", "header column %d is %q, want %q", i+1, header[i], name)
		}
	}

	result := &Result{Lines: []Line{}}
	index := make(map[lineKey]int)
	row := 1

	for scanner.Scan() {
		row++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		switch len(fields) {
		case len(tsvColumns):
		case len(tsvColumns) - 1:
			// Non-word rows may omit the trailing empty text column.
			fields = append(fields, "")
		default:
			return nil, errs.Errorf(errs.RecognitionError, "parse tsv", "row %d has %d columns, want %d", row, len(fields), len(tsvColumns))
		}

		var nums [10]int
		for i := 0; i < 10; i++ {
			n, err := strconv.Atoi(fields[i])
			if err != nil {
				return nil, errs.Errorf(errs.RecognitionError, "parse tsv", "row %d column %s: %q is not an integer", row, tsvColumns[i], fields[i])
			}
			nums[i] = n
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil {
			return nil, errs.Errorf(errs.RecognitionError, "parse tsv", "row %d column conf: %q is not a number", row, fields[10])
		}

		word := strings.TrimSpace(fields[11])
		if nums[0] != wordLevel || word == "" {
			continue
		}

		key := lineKey{page: nums[1], block: nums[2], par: nums[3], line: nums[4]}
		i, ok := index[key]
		if !ok {
			i = len(result.Lines)
			index[key] = i
			result.Lines = append(result.Lines, Line{})
		}
		left, top, width, height := nums[6], nums[7], nums[8], nums[9]
		result.Lines[i].Words = append(result.Lines[i].Words, Word{
			Text:       word,
			Confidence: conf / 100,
			Bounds:     &Bounds{X1: left, Y1: top, X2: left + width, Y2: top + height},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.E(errs.RecognitionError, "parse tsv", fmt.Errorf("failed to read output: %w", err))
	}

	return result, nil
}
