// Package storage persists evaluation runs in BoltDB.
//
// Run records are kept in the "runs" bucket under time-ordered keys so that runs
// can be listed by start time with a cursor range scan. When score persistence is
// enabled, every row's final score of a run is kept in its own nested bucket under
// "scores", keyed by row index.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFileName   = "treeval.db"
	runsBucket   = "runs"   // Bucket name for storing run records
	scoresBucket = "scores" // Parent bucket of the per-run score buckets
)

// ErrRunNotFound is returned when no run record has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord summarizes one finished or failed evaluation run.
type RunRecord struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Model       string    `json:"model"`
	Input       string    `json:"input"`
	Objective   string    `json:"objective"`
	Metric      string    `json:"metric"`
	Rows        int       `json:"rows"`
	Queries     int       `json:"queries,omitempty"`
	Final       *float64  `json:"final,omitempty"`
	Generations Series    `json:"generations,omitempty"`
	ScoresSaved bool      `json:"scores_saved"`
	Error       string    `json:"error,omitempty"`
}

// Store provides persistent storage for run records and scores using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the database under dataPath and makes sure its buckets exist.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(scoresBucket)); err != nil {
			return fmt.Errorf("create scores bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutRun stores or replaces a run record.
func (s *Store) PutRun(rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run record without id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal run record: %w", err)
		}
		return b.Put(runKey(rec.StartedAt, rec.ID), data)
	})
}

// GetRun looks a run record up by id.
func (s *Store) GetRun(id string) (RunRecord, error) {
	var (
		rec   RunRecord
		found bool
	)
	suffix := []byte("_" + id)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			if found || !bytes.HasSuffix(k, suffix) {
				return nil
			}
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal run record: %w", err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return RunRecord{}, err
	}
	if !found {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return rec, nil
}

// RunsInRange returns the runs started within [start, end], oldest first.
// Malformed records are skipped.
func (s *Store) RunsInRange(start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d_\xff", end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			runs = append(runs, rec)
		}
		return nil
	})

	return runs, err
}

// runKey orders runs by start time. The zero-padded timestamp keeps byte order equal
// to time order for every non-negative UnixNano.
func runKey(started time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", started.UnixNano(), id))
}
