package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidFields reports a partial payload that names an unknown or
// immutable column, or carries a value of the wrong shape.
var ErrInvalidFields = errors.New("invalid fields")

// Fields is a partial record payload keyed by column name.
type Fields map[string]any

// Keys returns the column names in f, sorted.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a copy of f overlaid with other.
func (f Fields) Merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Record is the contract shared by every reviewable record kind.
type Record[T any] interface {
	RecordID() string
	Created() time.Time
	// SearchText returns the values the search engine matches against.
	SearchText() []string
	// Normalize validates a partial payload and returns it with values
	// coerced to their column types.
	Normalize(Fields) (Fields, error)
	// Apply returns a copy of the record with the payload merged in.
	Apply(Fields) (T, error)
	// WithIdentity returns a copy carrying a store-assigned id and
	// creation time.
	WithIdentity(id string, created time.Time) T
}

type column struct {
	required bool
	check    func(string) error
}

func normalize(kind string, columns map[string]column, in Fields) (Fields, error) {
	out := make(Fields, len(in))
	for _, k := range in.Keys() {
		col, ok := columns[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no editable column %q", ErrInvalidFields, kind, k)
		}
		var s string
		switch v := in[k].(type) {
		case nil:
		case string:
			s = v
		case fmt.Stringer:
			s = v.String()
		default:
			return nil, fmt.Errorf("%w: %s.%s must be a string, got %T", ErrInvalidFields, kind, k, v)
		}
		// Values are stored as given; whitespace alone does not satisfy a
		// required column.
		if col.required && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: %s.%s is required", ErrInvalidFields, kind, k)
		}
		if col.check != nil && s != "" {
			if err := col.check(s); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidFields, kind, k, err)
			}
		}
		out[k] = s
	}
	return out, nil
}

func str(f Fields, key string, current string) string {
	if v, ok := f[key]; ok {
		return v.(string)
	}
	return current
}
