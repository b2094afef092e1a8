// ABOUTME: Attribute access for plugins: single set/get and ordered bulk fill.
// ABOUTME: Fill is all-or-nothing; a failing key rolls back the keys applied before it.

package core

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Attributes is an insertion-ordered attribute bag.
type Attributes = orderedmap.OrderedMap[string, any]

// NewAttributes returns an empty attribute bag.
func NewAttributes() *Attributes {
	return orderedmap.New[string, any]()
}

// FieldSetter lets a plugin expose attributes beyond the Base fields.
type FieldSetter interface {
	// Field returns the current value and whether the key is a known field.
	Field(key string) (any, bool)
	// SetField stores value; unknown keys must return ErrAttributeNotFound.
	SetField(key string, value any) error
}

// Attribute returns the value stored under key, or nil if there is none.
func (b *Base) Attribute(key string) any {
	switch key {
	case "name":
		return b.Name
	case "title":
		return b.Title
	case "description":
		return b.Description
	case "version":
		return b.Version
	case "author":
		return b.Author
	case "dependencies":
		return b.Dependencies
	}
	if fs, ok := b.outer().(FieldSetter); ok {
		if v, ok := fs.Field(key); ok {
			return v
		}
	}
	return nil
}

// SetAttribute stores value under key.
func (b *Base) SetAttribute(key string, value any) error {
	var target *string
	switch key {
	case "name":
		target = &b.Name
	case "title":
		target = &b.Title
	case "description":
		target = &b.Description
	case "version":
		target = &b.Version
	case "author":
		target = &b.Author
	case "dependencies":
		deps, err := toStrings(value)
		if err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
		b.Dependencies = deps
		return nil
	default:
		if fs, ok := b.outer().(FieldSetter); ok {
			if _, known := fs.Field(key); known {
				return fs.SetField(key, value)
			}
		}
		return fmt.Errorf("set %q: %w", key, ErrAttributeNotFound)
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("set %q: %w: want string, got %T", key, ErrInvalidAttribute, value)
	}
	*target = s
	return nil
}

// Fill applies attrs in insertion order. If any key fails, the keys applied
// earlier in the same call are restored and the error is returned.
func (b *Base) Fill(attrs *Attributes) error {
	if attrs == nil {
		return nil
	}

	type prior struct {
		key   string
		value any
	}
	var applied []prior

	for pair := attrs.Oldest(); pair != nil; pair = pair.Next() {
		old := b.Attribute(pair.Key)
		if err := b.SetAttribute(pair.Key, pair.Value); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				// restoring a value that was just read back cannot fail
				_ = b.SetAttribute(applied[i].key, applied[i].value)
			}
			return err
		}
		applied = append(applied, prior{key: pair.Key, value: old})
	}
	return nil
}

func toStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: dependency %v is %T, want string", ErrInvalidAttribute, item, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: want list of strings, got %T", ErrInvalidAttribute, value)
}
