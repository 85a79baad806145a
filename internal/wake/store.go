package wake

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Record is one learned variant as written to the store.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Phrase    string    `json:"phrase"`
	Variant   string    `json:"variant"`
}

// Store persists learned wake variants as append-only JSON lines.
// It is safe for concurrent use within one process.
type Store struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewStore returns a Store backed by path on fsys.
func NewStore(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// Append writes records to the end of the store, creating it if needed.
func (s *Store) Append(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("wake: create store dir: %w", err)
		}
	}
	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("wake: open store: %w", err)
	}
	defer f.Close()

	for _, r := range records {
		if r.Timestamp.IsZero() {
			r.Timestamp = time.Now().UTC()
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("wake: marshal: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("wake: write: %w", err)
		}
	}
	return nil
}

// Variants returns every learned variant in insertion order. A missing store
// yields no variants. Malformed lines are skipped.
func (s *Store) Variants() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wake: open store: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			slog.Warn("wake: skipping malformed store line", "path", s.path, "line", line, "err", err)
			continue
		}
		if r.Variant != "" {
			out = append(out, r.Variant)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("wake: read store: %w", err)
	}
	return out, nil
}

// Learn normalises transcripts of the user saying phrase and appends those
// not already accepted by base. It returns the newly stored variants.
func Learn(s *Store, base PhraseConfig, phrase string, transcripts []string) ([]string, error) {
	known := make(map[string]struct{}, base.Len())
	for _, v := range base.variants {
		known[v] = struct{}{}
	}
	stored, err := s.Variants()
	if err != nil {
		return nil, err
	}
	for _, v := range stored {
		known[Normalize(v)] = struct{}{}
	}

	var (
		added   []string
		records []Record
	)
	now := time.Now().UTC()
	for _, t := range transcripts {
		v := Normalize(t)
		if v == "" {
			continue
		}
		if _, ok := known[v]; ok {
			continue
		}
		known[v] = struct{}{}
		added = append(added, v)
		records = append(records, Record{Timestamp: now, Phrase: Normalize(phrase), Variant: v})
	}
	if err := s.Append(records...); err != nil {
		return nil, err
	}
	return added, nil
}

// LoadConfig returns base extended with every variant in s.
func LoadConfig(base PhraseConfig, s *Store) (PhraseConfig, error) {
	if s == nil {
		return base, nil
	}
	learned, err := s.Variants()
	if err != nil {
		return PhraseConfig{}, err
	}
	return base.WithVariants(learned...), nil
}
