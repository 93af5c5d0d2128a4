// Package history records evaluation results in an append-only JSON-lines
// file.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Entry is one recorded evaluation. Exactly one of Display and Error is set.
type Entry struct {
	Expr    string    `json:"expr"`
	Result  Value     `json:"result"`
	Display string    `json:"display,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Value is a result which encodes NaN and infinities as the JSON strings
// "NaN", "+Inf", and "-Inf".
type Value float64

func (v Value) MarshalJSON() ([]byte, error) {
	x := float64(v)
	switch {
	case math.IsNaN(x):
		return []byte(`"NaN"`), nil
	case math.IsInf(x, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(x, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("history: invalid result %q", s)
		}
		*v = Value(x)
		return nil
	}
	var x float64
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	*v = Value(x)
	return nil
}

// Store appends entries to a history file. It is safe for concurrent use
// within a process.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Open returns a Store writing to path, creating its directory if needed. The
// file itself is created on the first Append.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return &Store{path: path, now: time.Now}, nil
}

// Path returns the history file name.
func (s *Store) Path() string {
	return s.path
}

// Append writes entries to the end of the history. Entries with a zero Time
// are stamped with the current time.
func (s *Store) Append(entries ...Entry) error {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	for _, e := range entries {
		if e.Time.IsZero() {
			e.Time = s.now().UTC()
		}
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding history entry: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	if _, err := f.Write(b.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("appending history: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// List returns every entry in the history, oldest first. A missing file is an
// empty history.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer f.Close()
	var r []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, 1<<20)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return r, fmt.Errorf("reading history: line %d: %w", line, err)
		}
		r = append(r, e)
	}
	if err := sc.Err(); err != nil {
		return r, fmt.Errorf("reading history: %w", err)
	}
	return r, nil
}

// Clear removes every entry from the history.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Truncate(s.path, 0)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
