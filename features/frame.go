package features

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Kind string

const (
	KindFloat  Kind = "float64"
	KindInt    Kind = "int64"
	KindString Kind = "string"
	KindTime   Kind = "time"
)

// Field is one entry of a frame's schema.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Column is a typed column; only the slice matching Kind is populated.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Ints    []int64
	Strings []string
	Times   []time.Time
}

func (c Column) Len() int {
	switch c.Kind {
	case KindFloat:
		return len(c.Floats)
	case KindInt:
		return len(c.Ints)
	case KindString:
		return len(c.Strings)
	case KindTime:
		return len(c.Times)
	default:
		return 0
	}
}

func FloatColumn(name string, v []float64) Column {
	return Column{Name: name, Kind: KindFloat, Floats: v}
}
func IntColumn(name string, v []int64) Column { return Column{Name: name, Kind: KindInt, Ints: v} }
func StringColumn(name string, v []string) Column {
	return Column{Name: name, Kind: KindString, Strings: v}
}
func TimeColumn(name string, v []time.Time) Column {
	return Column{Name: name, Kind: KindTime, Times: v}
}

// Frame is a small columnar dataset. Columns keep their insertion order.
type Frame struct {
	Columns []Column
}

// NewFrame checks that column names are unique and lengths agree.
func NewFrame(cols ...Column) (Frame, error) {
	seen := map[string]bool{}
	n := -1
	for _, c := range cols {
		if c.Name == "" {
			return Frame{}, fmt.Errorf("frame: empty column name")
		}
		if seen[c.Name] {
			return Frame{}, fmt.Errorf("frame: duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		switch c.Kind {
		case KindFloat, KindInt, KindString, KindTime:
		default:
			return Frame{}, fmt.Errorf("frame: column %q has unknown kind %q", c.Name, c.Kind)
		}
		if n >= 0 && c.Len() != n {
			return Frame{}, fmt.Errorf("frame: column %q has %d rows, want %d", c.Name, c.Len(), n)
		}
		n = c.Len()
	}
	return Frame{Columns: cols}, nil
}

func (f Frame) Len() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

func (f Frame) Column(name string) (Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Schema lists the frame's fields in column order.
func (f Frame) Schema() []Field {
	out := make([]Field, 0, len(f.Columns))
	for _, c := range f.Columns {
		out = append(out, Field{Name: c.Name, Kind: c.Kind})
	}
	return out
}

// SchemaFingerprint identifies a column set and its types. Column order does
// not matter.
func SchemaFingerprint(schema []Field) string {
	parts := make([]string, 0, len(schema))
	for _, f := range schema {
		parts = append(parts, f.Name+":"+string(f.Kind))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
