package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"freightgraph/internal/errs"
)

// Snapshot keeps one flat JSON file per namespace under dir. Every Set
// rewrites the whole namespace file.
type Snapshot struct {
	dir string
	log *zap.Logger
	now func() time.Time

	mu   sync.Mutex
	data map[string]map[string]Entry
}

func NewSnapshot(dir string, log *zap.Logger) (*Snapshot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir %s: %w", dir, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Snapshot{dir: dir, log: log, now: time.Now, data: map[string]map[string]Entry{}}
	_ = s.Load()
	return s, nil
}

// Load reads every namespace file under the directory, replacing the
// in-memory view. Unreadable files leave their namespace empty; the returned
// error joins one CacheCorruptionError (or read error) per such file.
func (s *Snapshot) Load() error {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []error
	for _, f := range files {
		ns, ok := strings.CutSuffix(f.Name(), ".json")
		if !ok || f.IsDir() || checkNamespace(ns) != nil {
			continue
		}
		m, err := readSnapshot(ns, s.path(ns))
		if err != nil {
			s.log.Warn("cache snapshot unreadable, starting empty", zap.String("namespace", ns), zap.Error(err))
			failed = append(failed, err)
			m = map[string]Entry{}
		}
		s.data[ns] = m
	}
	return errors.Join(failed...)
}

func (s *Snapshot) path(ns string) string { return filepath.Join(s.dir, ns+".json") }

// namespace returns the in-memory view of ns. Namespaces without a file at
// Load time start empty. Caller holds s.mu.
func (s *Snapshot) namespace(ns string) map[string]Entry {
	if m, ok := s.data[ns]; ok {
		return m
	}
	m := map[string]Entry{}
	s.data[ns] = m
	return m
}

func readSnapshot(ns, path string) (map[string]Entry, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]Entry{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, &errs.CacheCorruptionError{Namespace: ns, Path: path, Err: err}
	}
	return m, nil
}

func (s *Snapshot) Get(_ context.Context, ns, key string) (Entry, bool, error) {
	if err := checkNamespace(ns); err != nil {
		return Entry{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.namespace(ns)[key]
	return e, ok, nil
}

func (s *Snapshot) Set(_ context.Context, ns, key string, value []byte) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("cache value for %s/%s is not JSON", ns, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.namespace(ns)
	m[key] = Entry{Value: append(json.RawMessage(nil), value...), WrittenAt: s.now().UTC()}
	return s.flush(ns, m)
}

func (s *Snapshot) flush(ns string, m map[string]Entry) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode cache namespace %s: %w", ns, err)
	}
	tmp, err := os.CreateTemp(s.dir, ns+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cache namespace %s: %w", ns, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache namespace %s: %w", ns, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(ns))
}

func (s *Snapshot) Clear(_ context.Context, ns string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[ns] = map[string]Entry{}
	if err := os.Remove(s.path(ns)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Snapshot) Stats(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.dir); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for ns, m := range s.data {
		if len(m) > 0 {
			out[ns] = len(m)
		}
	}
	return out, nil
}

func (s *Snapshot) Close() error { return nil }
