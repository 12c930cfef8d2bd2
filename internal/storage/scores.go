package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.etcd.io/bbolt"
)

// DefaultBatchSize is the number of scores committed per write transaction.
const DefaultBatchSize = 1024

// ScoreRecord is one persisted row result.
type ScoreRecord struct {
	Row   uint64
	Label float64
	Score float64
}

// ScoreWriter appends the final-generation score of every row of one run, in input
// order, to the run's score bucket. Scores are committed in batches; Close commits the
// remainder.
type ScoreWriter struct {
	store     *Store
	bucket    []byte
	batchSize int
	next      uint64
	pending   []ScoreRecord
	closed    bool
}

// NewScoreWriter creates (or truncates) the score bucket of runID.
func (s *Store) NewScoreWriter(runID string, batchSize int) (*ScoreWriter, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	bucket := []byte(runID)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket([]byte(scoresBucket))
		if parent.Bucket(bucket) != nil {
			if err := parent.DeleteBucket(bucket); err != nil {
				return fmt.Errorf("reset score bucket: %w", err)
			}
		}
		if _, err := parent.CreateBucket(bucket); err != nil {
			return fmt.Errorf("create score bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ScoreWriter{
		store:     s,
		bucket:    bucket,
		batchSize: batchSize,
		pending:   make([]ScoreRecord, 0, batchSize),
	}, nil
}

// WriteScore records the last element of scores for the next row.
func (w *ScoreWriter) WriteScore(label float64, scores []float64) error {
	if w.closed {
		return fmt.Errorf("score writer closed")
	}
	if len(scores) == 0 {
		return fmt.Errorf("row %d: empty score vector", w.next)
	}
	w.pending = append(w.pending, ScoreRecord{Row: w.next, Label: label, Score: scores[len(scores)-1]})
	w.next++
	if len(w.pending) >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Rows returns how many scores have been written.
func (w *ScoreWriter) Rows() uint64 { return w.next }

// Close commits pending scores. Calling it again is a no-op.
func (w *ScoreWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.flush()
}

func (w *ScoreWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	err := w.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scoresBucket)).Bucket(w.bucket)
		if b == nil {
			return fmt.Errorf("score bucket %s missing", w.bucket)
		}
		for _, rec := range w.pending {
			if err := b.Put(rowKey(rec.Row), encodeScore(rec)); err != nil {
				return fmt.Errorf("put score %d: %w", rec.Row, err)
			}
		}
		return nil
	})
	w.pending = w.pending[:0]
	return err
}

// Scores returns every persisted score of runID in row order.
func (s *Store) Scores(runID string) ([]ScoreRecord, error) {
	var out []ScoreRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scoresBucket)).Bucket([]byte(runID))
		if b == nil {
			return fmt.Errorf("%w: no scores for %s", ErrRunNotFound, runID)
		}
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 || len(v) != 16 {
				return fmt.Errorf("malformed score entry")
			}
			out = append(out, ScoreRecord{
				Row:   binary.BigEndian.Uint64(k),
				Label: math.Float64frombits(binary.BigEndian.Uint64(v[:8])),
				Score: math.Float64frombits(binary.BigEndian.Uint64(v[8:])),
			})
			return nil
		})
	})

	return out, err
}

func rowKey(row uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, row)
	return k
}

func encodeScore(rec ScoreRecord) []byte {
	v := make([]byte, 16)
	binary.BigEndian.PutUint64(v[:8], math.Float64bits(rec.Label))
	binary.BigEndian.PutUint64(v[8:], math.Float64bits(rec.Score))
	return v
}
