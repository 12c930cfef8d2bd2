// Package features turns raw input records into dense, model-aligned feature vectors.
// Two encodings are supported: header-addressed table rows and sparse "index:value" token lists.
package features

// Record is one parsed input row: its label, optional query id and dense feature vector.
type Record struct {
	Label    float64
	QueryID  string
	HasQuery bool
	Values   []float64
}
