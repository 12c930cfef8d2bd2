package features

import (
	"treeval/internal/common"
	"treeval/internal/model"
)

// TableBuilder maps header-addressed table rows onto the model's feature order.
// It is configured once per input stream from the header row.
type TableBuilder struct {
	names    []string
	columns  []int // feature index -> column index
	labelCol int
	queryCol int // -1 when rows carry no query id
}

// NewTableBuilder resolves every model feature, the label column and the optional
// query column against header. Column names match by exact equality.
func NewTableBuilder(ens *model.Ensemble, header []string, labelColumn, queryColumn string) (*TableBuilder, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	labelCol, ok := index[labelColumn]
	if !ok {
		return nil, common.Configurationf("label column %q not found in header", labelColumn)
	}

	queryCol := -1
	if queryColumn != "" {
		if queryCol, ok = index[queryColumn]; !ok {
			return nil, common.Configurationf("query column %q not found in header", queryColumn)
		}
	}

	b := &TableBuilder{
		names:    ens.FeatureNames(),
		columns:  make([]int, ens.NumFeatures()),
		labelCol: labelCol,
		queryCol: queryCol,
	}
	for i, name := range b.names {
		col, ok := index[name]
		if !ok {
			return nil, common.Configurationf("feature %q not found in header", name)
		}
		b.columns[i] = col
	}
	return b, nil
}

// Build parses one table row. Cells past the end of a short row read as 0.
func (b *TableBuilder) Build(row []string, line int) (Record, error) {
	var rec Record

	if b.labelCol >= len(row) {
		return rec, &common.ParseError{Source: common.FormatTSV, Line: line, Field: "label", Value: ""}
	}
	label, err := common.ParseNumber(row[b.labelCol])
	if err != nil {
		return rec, &common.ParseError{Source: common.FormatTSV, Line: line, Field: "label", Value: row[b.labelCol], Err: err}
	}
	rec.Label = label

	if b.queryCol >= 0 && b.queryCol < len(row) {
		rec.QueryID = row[b.queryCol]
		rec.HasQuery = true
	}

	rec.Values = make([]float64, len(b.columns))
	for i, col := range b.columns {
		if col >= len(row) {
			continue
		}
		v, err := common.ParseNumber(row[col])
		if err != nil {
			return rec, &common.ParseError{Source: common.FormatTSV, Line: line, Field: b.names[i], Value: row[col], Err: err}
		}
		rec.Values[i] = v
	}
	return rec, nil
}
