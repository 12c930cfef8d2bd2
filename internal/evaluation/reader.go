package evaluation

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"treeval/internal/cfg"
	"treeval/internal/common"
	"treeval/internal/features"
	"treeval/internal/model"
)

// maxLineSize bounds a single sparse input line.
const maxLineSize = 16 * 1024 * 1024

// RowReader yields one parsed input record at a time and io.EOF at end of stream.
type RowReader interface {
	Next() (features.Record, error)
}

// NewRowReader builds the reader for the configured input format.
func NewRowReader(r io.Reader, ens *model.Ensemble, settings *cfg.Settings) (RowReader, error) {
	switch settings.InputFormat {
	case common.FormatTSV:
		sep, _ := utf8.DecodeRuneInString(settings.TSVSeparator)
		return NewTableReader(r, ens, TableOptions{
			Separator:   sep,
			LabelColumn: settings.LabelColumn,
			QueryColumn: settings.QueryColumn,
		})
	case common.FormatSVM:
		return NewSparseReader(r, ens, settings.QueryKey), nil
	default:
		return nil, common.Configurationf("unknown input format %q", settings.InputFormat)
	}
}

// TableOptions configures header-addressed delimited input.
type TableOptions struct {
	Separator   rune
	LabelColumn string
	QueryColumn string
}

// TableReader reads a header row followed by delimited data rows.
type TableReader struct {
	csv     *csv.Reader
	builder *features.TableBuilder
}

// NewTableReader consumes the header row and resolves every model feature against it.
func NewTableReader(r io.Reader, ens *model.Ensemble, opts TableOptions) (*TableReader, error) {
	if opts.Separator == 0 {
		opts.Separator = '\t'
	}
	if opts.LabelColumn == "" {
		opts.LabelColumn = common.DefaultLabelColumn
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Separator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, common.Configurationf("table input has no header row")
	}
	if err != nil {
		return nil, tableReadError(err)
	}

	builder, err := features.NewTableBuilder(ens, header, opts.LabelColumn, opts.QueryColumn)
	if err != nil {
		return nil, err
	}
	return &TableReader{csv: cr, builder: builder}, nil
}

func (t *TableReader) Next() (features.Record, error) {
	row, err := t.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return features.Record{}, io.EOF
		}
		return features.Record{}, tableReadError(err)
	}
	line, _ := t.csv.FieldPos(0)
	return t.builder.Build(row, line)
}

func tableReadError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &common.ParseError{Source: common.FormatTSV, Line: pe.Line, Field: "row", Value: "", Err: pe.Err}
	}
	if errors.Is(err, common.ErrStream) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrStream, err)
}

// SparseReader reads "label index:value ..." lines.
type SparseReader struct {
	scanner *bufio.Scanner
	parser  *features.SparseParser
	line    int
}

// NewSparseReader returns a reader whose vectors are at least as long as the model's feature list.
func NewSparseReader(r io.Reader, ens *model.Ensemble, queryKey string) *SparseReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &SparseReader{
		scanner: sc,
		parser:  features.NewSparseParser(ens.NumFeatures(), queryKey),
	}
}

func (s *SparseReader) Next() (features.Record, error) {
	for s.scanner.Scan() {
		s.line++
		rec, ok, err := s.parser.Parse(s.scanner.Text(), s.line)
		if err != nil {
			return features.Record{}, err
		}
		if ok {
			return rec, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, common.ErrStream) {
			return features.Record{}, err
		}
		return features.Record{}, fmt.Errorf("%w: line %d: %v", common.ErrStream, s.line+1, err)
	}
	return features.Record{}, io.EOF
}
