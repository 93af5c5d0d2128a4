package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follow calls fn with each entry in the history file at path, then keeps
// watching the file and calls fn with entries as they are appended, until ctx
// is done or fn returns an error. Truncating or replacing the file restarts
// from its beginning. The result is ctx.Err() if ctx ends the watch.
func Follow(ctx context.Context, path string, fn func(Entry) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("following history: %w", err)
	}
	defer w.Close()
	// Watch the directory rather than the file so that the file may be
	// created or replaced while we watch.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("following history: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("following history: %w", err)
	}
	t := tail{path: filepath.Clean(path)}
	if err := t.read(fn); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != t.path {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				t.reset()
				continue
			}
			if ev.Has(fsnotify.Create) {
				t.reset()
			}
			if err := t.read(fn); err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("following history: %w", err)
		}
	}
}

// markLen is the number of delivered bytes kept to recognize a file that was
// truncated and rewritten past the old offset between two reads.
const markLen = 64

// tail tracks how much of a history file has been delivered.
type tail struct {
	path string
	off  int64
	// part is an incomplete final line.
	part []byte
	// mark holds the last bytes before off.
	mark []byte
	// info identifies the file last read.
	info os.FileInfo
}

func (t *tail) reset() {
	t.off = 0
	t.part = t.part[:0]
	t.mark = t.mark[:0]
}

// same reports whether f still holds the delivered bytes before t.off.
func (t *tail) same(f *os.File, st os.FileInfo) bool {
	if t.info != nil && !os.SameFile(t.info, st) {
		return false
	}
	if st.Size() < t.off {
		return false
	}
	if len(t.mark) == 0 {
		return true
	}
	b := make([]byte, len(t.mark))
	if _, err := f.ReadAt(b, t.off-int64(len(b))); err != nil {
		return false
	}
	return bytes.Equal(b, t.mark)
}

// read delivers every complete line after the current offset.
func (t *tail) read(fn func(Entry) error) error {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("following history: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("following history: %w", err)
	}
	if !t.same(f, st) {
		t.reset()
	}
	t.info = st
	if _, err := f.Seek(t.off, io.SeekStart); err != nil {
		return fmt.Errorf("following history: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("following history: %w", err)
	}
	t.off += int64(len(data))
	m := append(t.mark, data...)
	if len(m) > markLen {
		m = m[len(m)-markLen:]
	}
	t.mark = append([]byte(nil), m...)
	data = append(t.part, data...)
	for {
		k := bytes.IndexByte(data, '\n')
		if k < 0 {
			break
		}
		line := bytes.TrimSpace(data[:k])
		data = data[k+1:]
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("following history: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	t.part = append(t.part[:0], data...)
	return nil
}
