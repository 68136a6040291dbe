// Package features is a content-addressed cache for derived datasets, plus a
// per-symbol price table and an append-only provenance log.
//
// Layout under the store root:
//
//	<root>/<namespace>/<key>/data.gob.xz   dataset (gob, xz-compressed)
//	<root>/<namespace>/<key>/meta.json     {key, params, schema, version, created_at}
//	<root>/features.sqlite                 prices + provenance
package features

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/tradefuse/pkg/snapshot"
	"github.com/ulikunitz/xz"
)

// ErrNotFound is returned for absent keys and symbols without prices.
var ErrNotFound = snapshot.ErrNotFound

const (
	dataFile = "data.gob.xz"
	metaFile = "meta.json"
	dbFile   = "features.sqlite"
)

var (
	nsPattern  = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	keyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// Meta is the sidecar stored next to every dataset. It holds enough to
// recompute the entry's key.
type Meta struct {
	Key       string          `json:"key"`
	Namespace string          `json:"namespace"`
	Params    json.RawMessage `json:"params"`
	Schema    []Field         `json:"schema"`
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Rows      int             `json:"rows"`
}

type Store struct {
	root string
	db   *sql.DB
	log  zerolog.Logger
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens (creating if needed) the store rooted at root.
func Open(root string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create feature root: %w", err)
	}
	db, err := openDB(filepath.Join(root, dbFile))
	if err != nil {
		return nil, err
	}
	s := &Store{root: root, db: db, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Root() string { return s.root }

func (s *Store) entryDir(ns, key string) (string, error) {
	if !nsPattern.MatchString(ns) {
		return "", fmt.Errorf("invalid namespace %q", ns)
	}
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, ns, key), nil
}

// Put stores data under the key derived from its schema, params and version,
// and returns that key. Putting an existing key overwrites it.
func (s *Store) Put(ns string, data Frame, params Params, version string) (string, error) {
	if _, err := NewFrame(data.Columns...); err != nil {
		return "", fmt.Errorf("put %s: %w", ns, err)
	}
	if params == nil {
		params = Params{}
	}
	pj, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("put %s: encode params: %w", ns, err)
	}
	schema := data.Schema()
	key := contentKey(schema, pj, version)

	dir, err := s.entryDir(ns, key)
	if err != nil {
		return "", err
	}

	blob, err := encodeFrame(data)
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", ns, key, err)
	}
	if err := snapshot.WriteAtomic(filepath.Join(dir, dataFile), blob); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", ns, key, err)
	}

	meta := Meta{
		Key:       key,
		Namespace: ns,
		Params:    pj,
		Schema:    schema,
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Rows:      data.Len(),
	}
	mb, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	// meta is written last: an entry without a sidecar does not exist yet.
	if err := snapshot.WriteAtomic(filepath.Join(dir, metaFile), mb); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", ns, key, err)
	}

	s.log.Debug().Str("namespace", ns).Str("key", key).Int("rows", data.Len()).Msg("feature put")
	return key, nil
}

// Meta reads and validates the sidecar of an entry.
func (s *Store) Meta(ns, key string) (Meta, error) {
	dir, err := s.entryDir(ns, key)
	if err != nil {
		return Meta{}, err
	}
	b, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, fmt.Errorf("feature %s/%s: %w", ns, key, ErrNotFound)
		}
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("decode meta %s/%s: %w", ns, key, err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, m.Params); err != nil {
		return Meta{}, fmt.Errorf("decode meta %s/%s: %w", ns, key, err)
	}
	if got := contentKey(m.Schema, compact.Bytes(), m.Version); got != key {
		return Meta{}, fmt.Errorf("feature %s/%s: sidecar hashes to %s", ns, key, got)
	}
	return m, nil
}

// Get returns the dataset stored under key.
func (s *Store) Get(ns, key string) (Frame, error) {
	m, err := s.Meta(ns, key)
	if err != nil {
		return Frame{}, err
	}
	dir, _ := s.entryDir(ns, key)
	b, err := os.ReadFile(filepath.Join(dir, dataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Frame{}, fmt.Errorf("feature %s/%s: %w", ns, key, ErrNotFound)
		}
		return Frame{}, err
	}
	f, err := decodeFrame(b)
	if err != nil {
		return Frame{}, fmt.Errorf("feature %s/%s: %w", ns, key, err)
	}
	if SchemaFingerprint(f.Schema()) != SchemaFingerprint(m.Schema) {
		return Frame{}, fmt.Errorf("feature %s/%s: %w: stored data does not match sidecar", ns, key, ErrSchemaMismatch)
	}
	return f, nil
}

// Exists reports whether a complete entry is stored under key.
func (s *Store) Exists(ns, key string) (bool, error) {
	dir, err := s.entryDir(ns, key)
	if err != nil {
		return false, err
	}
	for _, name := range []string{metaFile, dataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// GetOrCompute returns the cached dataset for (ns, schema, params, version),
// computing and storing it on a miss. schema must match what compute returns.
func (s *Store) GetOrCompute(ns string, schema []Field, params Params, version string, compute func() (Frame, error)) (Frame, string, error) {
	key, err := ContentKey(schema, params, version)
	if err != nil {
		return Frame{}, "", err
	}
	f, err := s.Get(ns, key)
	if err == nil {
		s.log.Debug().Str("namespace", ns).Str("key", key).Msg("feature cache hit")
		return f, key, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Frame{}, "", err
	}
	f, err = compute()
	if err != nil {
		return Frame{}, "", err
	}
	if SchemaFingerprint(f.Schema()) != SchemaFingerprint(schema) {
		return Frame{}, "", fmt.Errorf("compute %s: %w: got %s, want %s", ns, ErrSchemaMismatch,
			SchemaFingerprint(f.Schema()), SchemaFingerprint(schema))
	}
	key, err = s.Put(ns, f, params, version)
	return f, key, err
}

func encodeFrame(f Frame) ([]byte, error) {
	cols := append([]Column{}, f.Columns...)
	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(cols); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("xz close: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeFrame(b []byte) (Frame, error) {
	zr, err := xz.NewReader(bytes.NewReader(b))
	if err != nil {
		return Frame{}, fmt.Errorf("xz reader: %w", err)
	}
	var cols []Column
	if err := gob.NewDecoder(zr).Decode(&cols); err != nil && !errors.Is(err, io.EOF) {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return NewFrame(cols...)
}
