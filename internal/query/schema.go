package query

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Well-known document fields shared by every resource.
const (
	IDField        = "_id"
	VersionField   = "__v"
	CreatedAtField = "createdAt"
	UpdatedAtField = "updatedAt"
)

// DefaultLimit is the page size used when a request does not ask for one.
const DefaultLimit = 50

// Kind is the value type of a queryable field. Raw query-string values are
// coerced to it before they reach a store.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindID
	KindTime
)

// Field describes one queryable field of a resource.
type Field struct {
	Kind Kind
	// Column is the relational column backing the field. Document stores use
	// the field name itself.
	Column string
}

// Schema lists the fields a resource exposes to filtering, projection and
// sorting, and the subset searched by the keyword parameter.
type Schema struct {
	Fields       map[string]Field
	Searchable   []string
	DefaultLimit int
	// MaxLimit caps the page size; zero means no cap.
	MaxLimit int
}

// Lookup returns the field registered under name.
func (s Schema) Lookup(name string) (Field, bool) {
	f, ok := s.Fields[name]
	return f, ok
}

// Column returns the relational column for name, falling back to name.
func (s Schema) Column(name string) string {
	if f, ok := s.Fields[name]; ok && f.Column != "" {
		return f.Column
	}
	return name
}

func (s Schema) limits() (def, max int) {
	def = s.DefaultLimit
	if def <= 0 {
		def = DefaultLimit
	}
	max = s.MaxLimit
	if max < 0 {
		max = 0
	}
	return def, max
}

// IsValidID reports whether s is a 24-character hex document identifier.
func IsValidID(s string) bool {
	if len(s) != 24 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// coerce converts a raw query-string value to the Go type of kind.
func coerce(kind Kind, raw string) (any, bool) {
	switch kind {
	case KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, false
		}
		return b, true
	case KindID:
		id := strings.ToLower(strings.TrimSpace(raw))
		if !IsValidID(id) {
			return nil, false
		}
		return id, true
	case KindTime:
		raw = strings.TrimSpace(raw)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
		return nil, false
	default:
		return raw, true
	}
}
