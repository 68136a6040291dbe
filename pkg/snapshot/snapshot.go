// Package snapshot implements the append-only, versioned artifact store shared
// by the cost, exit-policy and hazard stores.
//
// A store directory holds one file per version plus a single pointer file:
//
//	<dir>/<kind>-v000001.json
//	<dir>/<kind>-v000002.json
//	<dir>/<kind>.latest          {"version":2,"file":"<kind>-v000002.json"}
//
// Every file is published with write-temp-then-rename so a reader, in this or
// any other process, only ever observes complete content. Readers never lock.
// Writers to the same directory must be serialized by the caller.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ErrNotFound is returned when a store (or a requested version) is empty.
var ErrNotFound = errors.New("snapshot not found")

type Store struct {
	dir  string
	kind string
}

type pointer struct {
	Version int64  `json:"version"`
	File    string `json:"file"`
}

var kindSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Open returns a store rooted at dir for artifacts of the given kind. The
// directory is created lazily on first write.
func Open(dir, kind string) *Store {
	return &Store{dir: dir, kind: kindSanitizer.ReplaceAllString(kind, "_")}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) fileName(version int64) string {
	return fmt.Sprintf("%s-v%06d.json", s.kind, version)
}

func (s *Store) pointerPath() string {
	return filepath.Join(s.dir, s.kind+".latest")
}

// Write stores v as a new version and publishes it as latest.
func (s *Store) Write(v any) (int64, string, error) {
	return s.WriteVersioned(func(int64) any { return v })
}

// WriteVersioned is Write for records that carry their own version number:
// build is called with the version being reserved and its result is stored
// under exactly that version.
func (s *Store) WriteVersioned(build func(version int64) any) (int64, string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, "", fmt.Errorf("create store dir: %w", err)
	}

	versions, err := s.Versions()
	if err != nil {
		return 0, "", err
	}
	next := int64(1)
	if n := len(versions); n > 0 {
		next = versions[n-1] + 1
	}

	for {
		b, err := json.MarshalIndent(build(next), "", "  ")
		if err != nil {
			return 0, "", fmt.Errorf("encode %s: %w", s.kind, err)
		}
		tmp, err := writeTemp(s.dir, s.kind, b)
		if err != nil {
			return 0, "", err
		}

		// Link fails if the name exists, so a version file is never overwritten.
		path := filepath.Join(s.dir, s.fileName(next))
		err = os.Link(tmp, path)
		os.Remove(tmp)
		if errors.Is(err, os.ErrExist) {
			next++
			continue
		}
		if err != nil {
			return 0, "", fmt.Errorf("publish %s v%d: %w", s.kind, next, err)
		}

		if err := s.Publish(next); err != nil {
			return 0, "", err
		}
		return next, path, nil
	}
}

// Publish atomically repoints latest at an existing version.
func (s *Store) Publish(version int64) error {
	name := s.fileName(version)
	if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("publish %s v%d: %w", s.kind, version, ErrNotFound)
		}
		return err
	}
	b, err := json.Marshal(pointer{Version: version, File: name})
	if err != nil {
		return err
	}
	return writeAtomic(s.pointerPath(), b)
}

// Latest returns the currently published version.
func (s *Store) Latest() (int64, error) {
	b, err := os.ReadFile(s.pointerPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%s in %s: %w", s.kind, s.dir, ErrNotFound)
		}
		return 0, fmt.Errorf("read latest pointer: %w", err)
	}
	var p pointer
	if err := json.Unmarshal(b, &p); err != nil {
		return 0, fmt.Errorf("parse latest pointer: %w", err)
	}
	return p.Version, nil
}

// Load decodes the given version into v and returns its path.
func (s *Store) Load(version int64, v any) (string, error) {
	path := filepath.Join(s.dir, s.fileName(version))
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s v%d: %w", s.kind, version, ErrNotFound)
		}
		return "", err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return "", fmt.Errorf("decode %s v%d: %w", s.kind, version, err)
	}
	return path, nil
}

// LoadLatest decodes the published version into v.
func (s *Store) LoadLatest(v any) (int64, error) {
	version, err := s.Latest()
	if err != nil {
		return 0, err
	}
	if _, err := s.Load(version, v); err != nil {
		return 0, err
	}
	return version, nil
}

// Versions lists the stored versions in ascending order.
func (s *Store) Versions() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(s.kind) + `-v(\d+)\.json$`)
	var out []int64
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func writeTemp(dir, prefix string, b []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+prefix+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// WriteAtomic replaces path with b using a temp file in the same directory.
func WriteAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeAtomic(path, b)
}

func writeAtomic(path string, b []byte) error {
	tmp, err := writeTemp(filepath.Dir(path), filepath.Base(path), b)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
