package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CounterStore tracks how many signals passed the full gate on a given day.
// Implementations must make Increment a single atomic read-modify-write.
type CounterStore interface {
	Count(day string) (int, error)
	Increment(day string) (int, error)
}

type counterRecord struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// FileCounterStore persists {date, count} as JSON. The date rolling over
// implicitly resets the count to zero.
type FileCounterStore struct {
	mu   sync.Mutex
	path string
}

func NewFileCounterStore(path string) *FileCounterStore {
	return &FileCounterStore{path: path}
}

func (s *FileCounterStore) Count(day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.read()
	if err != nil {
		return 0, err
	}
	if rec.Date != day {
		return 0, nil
	}
	return rec.Count, nil
}

func (s *FileCounterStore) Increment(day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.read()
	if err != nil {
		return 0, err
	}
	if rec.Date != day {
		rec = counterRecord{Date: day}
	}
	rec.Count++
	if err := s.write(rec); err != nil {
		return 0, err
	}
	return rec.Count, nil
}

func (s *FileCounterStore) read() (counterRecord, error) {
	var rec counterRecord
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("read counter file: %w", err)
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		// A corrupt counter file counts as zero trades rather than
		// wedging the pipeline.
		return counterRecord{}, nil
	}
	return rec, nil
}

func (s *FileCounterStore) write(rec counterRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
