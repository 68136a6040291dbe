package features

import (
	"context"
	"fmt"
	"time"
)

// Provenance records where a dataset or artifact came from.
type Provenance struct {
	ID         int64
	Subject    string
	Kind       string
	SourceRef  string
	Version    string
	RecordedAt time.Time
}

// RecordProvenance appends one row to the provenance log and returns its id.
// Ids are strictly increasing and never reused.
func (s *Store) RecordProvenance(ctx context.Context, subject, kind, sourceRef, version string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO provenance (subject, kind, source_ref, version, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		subject, kind, sourceRef, version, time.Now().UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("record provenance %s: %w", subject, err)
	}
	return res.LastInsertId()
}

// ListProvenance returns subject's provenance rows, oldest first. An empty
// subject lists every row.
func (s *Store) ListProvenance(ctx context.Context, subject string) ([]Provenance, error) {
	q := `SELECT id, subject, kind, source_ref, version, recorded_at FROM provenance`
	var args []any
	if subject != "" {
		q += ` WHERE subject = ?`
		args = append(args, subject)
	}
	q += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var out []Provenance
	for rows.Next() {
		var (
			p  Provenance
			at int64
		)
		if err := rows.Scan(&p.ID, &p.Subject, &p.Kind, &p.SourceRef, &p.Version, &at); err != nil {
			return nil, err
		}
		p.RecordedAt = time.Unix(0, at).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
