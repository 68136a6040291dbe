package features

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const Schema = `
CREATE TABLE IF NOT EXISTS prices (
	symbol TEXT NOT NULL,
	ts INTEGER NOT NULL,
	open REAL,
	high REAL,
	low REAL,
	close REAL,
	volume REAL,
	PRIMARY KEY (symbol, ts)
);

CREATE TABLE IF NOT EXISTS provenance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject TEXT NOT NULL,
	kind TEXT NOT NULL,
	source_ref TEXT NOT NULL,
	version TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provenance_subject ON provenance(subject);
`

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// ErrSchemaMismatch is wrapped by *SchemaError.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaError reports the columns a data source is missing or has with the
// wrong type.
type SchemaError struct {
	Source   string
	Missing  []string
	Mistyped []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Mistyped) > 0 {
		parts = append(parts, "mistyped "+strings.Join(e.Mistyped, ","))
	}
	return fmt.Sprintf("%s: %s: %s", ErrSchemaMismatch, e.Source, strings.Join(parts, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }

// PriceSchema is the set of columns a price frame must carry. volume is
// optional.
var PriceSchema = []Field{
	{Name: "time", Kind: KindTime},
	{Name: "open", Kind: KindFloat},
	{Name: "high", Kind: KindFloat},
	{Name: "low", Kind: KindFloat},
	{Name: "close", Kind: KindFloat},
}

// CheckColumns verifies that f carries every required field with the right
// kind.
func CheckColumns(source string, f Frame, required []Field) error {
	var se SchemaError
	for _, want := range required {
		c, ok := f.Column(want.Name)
		if !ok {
			se.Missing = append(se.Missing, want.Name)
			continue
		}
		if c.Kind != want.Kind {
			se.Mistyped = append(se.Mistyped, fmt.Sprintf("%s(%s!=%s)", want.Name, c.Kind, want.Kind))
		}
	}
	if len(se.Missing) == 0 && len(se.Mistyped) == 0 {
		return nil
	}
	se.Source = source
	return &se
}
