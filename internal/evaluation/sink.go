package evaluation

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"treeval/internal/common"
)

// Sink receives every scored row in input order.
type Sink interface {
	WriteScore(label float64, scores []float64) error
	Close() error
}

// TextSink writes the final-generation score of each row, one "%f" per line.
type TextSink struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewTextSink creates (or truncates) path.
func NewTextSink(path string) (*TextSink, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: create score file %s: %v", common.ErrStream, path, err)
	}
	return &TextSink{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (s *TextSink) WriteScore(_ float64, scores []float64) error {
	if len(scores) == 0 {
		return common.Invariantf("empty score vector")
	}
	if _, err := fmt.Fprintf(s.w, "%f\n", scores[len(scores)-1]); err != nil {
		return fmt.Errorf("%w: write %s: %v", common.ErrStream, s.path, err)
	}
	return nil
}

// Close flushes buffered scores and closes the file. It is safe to call twice.
func (s *TextSink) Close() error {
	if s.f == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.f.Close()
	s.f = nil
	if flushErr != nil {
		return fmt.Errorf("%w: flush %s: %v", common.ErrStream, s.path, flushErr)
	}
	return closeErr
}
