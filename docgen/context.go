package docgen

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind discriminates the closed set of data context variants.
type ValueKind string

const (
	ValueString   ValueKind = "string"
	ValueNumber   ValueKind = "number"
	ValueBool     ValueKind = "bool"
	ValueDate     ValueKind = "date"
	ValueSequence ValueKind = "sequence"
	ValueMapping  ValueKind = "mapping"
)

// Value is one variant of the closed data context value set. Dynamic or
// unknown shapes are rejected at construction, not coerced later.
type Value struct {
	Kind ValueKind

	str  string
	num  float64
	b    bool
	date time.Time
	seq  []Value
	m    DataContext
}

// String creates a string value.
func String(s string) Value { return Value{Kind: ValueString, str: s} }

// Number creates a numeric value.
func Number(n float64) Value { return Value{Kind: ValueNumber, num: n} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{Kind: ValueBool, b: b} }

// Date creates a date value.
func Date(t time.Time) Value { return Value{Kind: ValueDate, date: t} }

// Sequence creates an ordered sequence value.
func Sequence(items ...Value) Value { return Value{Kind: ValueSequence, seq: items} }

// Mapping creates a nested mapping value.
func Mapping(m DataContext) Value { return Value{Kind: ValueMapping, m: m} }

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload.
func (v Value) Num() float64 { return v.num }

// Boolean returns the boolean payload.
func (v Value) Boolean() bool { return v.b }

// Time returns the date payload.
func (v Value) Time() time.Time { return v.date }

// Seq returns the sequence payload in source order.
func (v Value) Seq() []Value { return v.seq }

// Map returns the nested mapping payload.
func (v Value) Map() DataContext { return v.m }

// Truthy reports whether the value selects a conditional branch.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValueString:
		return v.str != ""
	case ValueNumber:
		return v.num != 0
	case ValueBool:
		return v.b
	case ValueDate:
		return !v.date.IsZero()
	case ValueSequence:
		return len(v.seq) > 0
	case ValueMapping:
		return len(v.m) > 0
	default:
		return false
	}
}

// Text renders the value as display text. Sequences and mappings have no
// scalar rendering and report an error instead of guessing.
func (v Value) Text() (string, error) {
	switch v.Kind {
	case ValueString:
		return v.str, nil
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), nil
	case ValueBool:
		return strconv.FormatBool(v.b), nil
	case ValueDate:
		return v.date.Format("2006-01-02"), nil
	default:
		return "", fmt.Errorf("value of kind %s has no text form", v.Kind)
	}
}

// DataContext is a typed mapping from binding names to values. Nested
// mappings are addressed with dot paths.
type DataContext map[string]Value

// Lookup resolves a dot path against the context.
func (d DataContext) Lookup(path string) (Value, bool) {
	if d == nil || path == "" {
		return Value{}, false
	}

	current := d
	parts := strings.Split(path, ".")
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return Value{}, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		if value.Kind != ValueMapping {
			return Value{}, false
		}
		current = value.m
	}
	return Value{}, false
}

// Paths returns every addressable dot path in the context, including
// nested mapping members. Order is unspecified.
func (d DataContext) Paths() []string {
	var paths []string
	var walk func(prefix string, ctx DataContext)
	walk = func(prefix string, ctx DataContext) {
		for name, value := range ctx {
			path := name
			if prefix != "" {
				path = prefix + "." + name
			}
			paths = append(paths, path)
			if value.Kind == ValueMapping {
				walk(path, value.m)
			}
		}
	}
	walk("", d)
	return paths
}

// Validate checks the context against a binding schema: every required
// field must be present with the declared kind.
func (d DataContext) Validate(schema BindingSchema) error {
	for _, field := range schema.Fields {
		value, ok := d.Lookup(field.Path)
		if !ok {
			if field.Required {
				return NewError(KindValidation, fmt.Sprintf("required binding %q is absent", field.Path), nil)
			}
			continue
		}
		if field.Kind != "" && value.Kind != field.Kind {
			return NewError(KindValidation, fmt.Sprintf("binding %q is %s, schema declares %s", field.Path, value.Kind, field.Kind), nil)
		}
	}
	return nil
}
