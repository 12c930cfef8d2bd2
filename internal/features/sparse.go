package features

import (
	"errors"
	"strconv"
	"strings"

	"treeval/internal/common"
)

var errNegativeIndex = errors.New("negative feature index")

// SparseParser reads whitespace-delimited "label index:value ..." lines.
// Feature indices are used as vector positions as written.
type SparseParser struct {
	numFeatures int
	queryKey    string
}

// NewSparseParser returns a parser producing vectors of at least numFeatures entries.
// When queryKey is non-empty, the token with that key is removed and becomes the query id.
func NewSparseParser(numFeatures int, queryKey string) *SparseParser {
	return &SparseParser{numFeatures: numFeatures, queryKey: queryKey}
}

// Parse converts one line. ok is false for a blank line, which carries no record.
// The vector is max(numFeatures, largest index + 1) long; absent positions are 0.
func (p *SparseParser) Parse(line string, lineNo int) (rec Record, ok bool, err error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return rec, false, nil
	}

	label, err := common.ParseNumber(tokens[0])
	if err != nil {
		return rec, false, &common.ParseError{Source: common.FormatSVM, Line: lineNo, Field: "label", Value: tokens[0], Err: err}
	}
	rec.Label = label

	type entry struct {
		index int
		value float64
	}
	entries := make([]entry, 0, len(tokens)-1)
	maxIndex := -1

	for _, tok := range tokens[1:] {
		key, val, found := strings.Cut(tok, ":")
		if !found {
			continue
		}
		if p.queryKey != "" && key == p.queryKey {
			rec.QueryID = val
			rec.HasQuery = true
			continue
		}

		idx, err := strconv.Atoi(key)
		if err == nil && idx < 0 {
			err = errNegativeIndex
		}
		if err != nil {
			return rec, false, &common.ParseError{Source: common.FormatSVM, Line: lineNo, Field: "feature index", Value: key, Err: err}
		}
		v, err := common.ParseNumber(val)
		if err != nil {
			return rec, false, &common.ParseError{Source: common.FormatSVM, Line: lineNo, Field: "feature " + key, Value: val, Err: err}
		}

		entries = append(entries, entry{idx, v})
		if idx > maxIndex {
			maxIndex = idx
		}
	}

	if p.queryKey != "" && !rec.HasQuery {
		return rec, false, &common.ParseError{Source: common.FormatSVM, Line: lineNo, Field: "query key " + p.queryKey, Value: ""}
	}

	size := p.numFeatures
	if maxIndex+1 > size {
		size = maxIndex + 1
	}
	rec.Values = make([]float64, size)
	for _, e := range entries {
		rec.Values[e.index] = e.value
	}
	return rec, true, nil
}
