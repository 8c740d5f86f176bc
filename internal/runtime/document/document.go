// Package document models the self-describing documents that make up an
// experiment run and the (name, document) pairs that travel over the bus.
package document

import (
	"fmt"
	"maps"
	"math"
	"strconv"

	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

// Kind names a document type. The set is closed; ParseKind rejects anything else.
type Kind string

const (
	KindStart      Kind = "start"
	KindDescriptor Kind = "descriptor"
	KindResource   Kind = "resource"
	KindDatum      Kind = "datum"
	KindDatumPage  Kind = "datum_page"
	KindEvent      Kind = "event"
	KindEventPage  Kind = "event_page"
	KindStop       Kind = "stop"
)

// Kinds lists every recognised kind in declaration order.
var Kinds = []Kind{
	KindStart, KindDescriptor, KindResource, KindDatum,
	KindDatumPage, KindEvent, KindEventPage, KindStop,
}

// resolution is accepted on the wire as another name for resource records.
const resolutionAlias = "resolution"

// ParseKind maps a wire name onto a Kind.
func ParseKind(name string) (Kind, error) {
	if name == resolutionAlias {
		return KindResource, nil
	}
	k := Kind(name)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", errspkg.ErrUnrecognizedDocumentKind, name)
	}
	return k, nil
}

// Valid reports whether k is one of the recognised kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindStart, KindDescriptor, KindResource, KindDatum,
		KindDatumPage, KindEvent, KindEventPage, KindStop:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Document is one decoded document body.
type Document map[string]any

// Pair is a document together with its kind, the unit every stage consumes
// and emits.
type Pair struct {
	Name Kind
	Doc  Document
}

// Field names shared across document kinds.
const (
	FieldUID            = "uid"
	FieldRunStart       = "run_start"
	FieldDescriptor     = "descriptor"
	FieldName           = "name"
	FieldDataKeys       = "data_keys"
	FieldExternal       = "external"
	FieldData           = "data"
	FieldFilled         = "filled"
	FieldSpec           = "spec"
	FieldRoot           = "root"
	FieldResourcePath   = "resource_path"
	FieldResourceKwargs = "resource_kwargs"
	FieldResource       = "resource"
	FieldDatumID        = "datum_id"
	FieldDatumKwargs    = "datum_kwargs"
	FieldScanID         = "scan_id"
)

// PrimaryStream is the stream name of a run's main data stream.
const PrimaryStream = "primary"

// String returns the string stored under key, or "" when absent or not a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Require returns the non-empty string stored under key.
func (d Document) Require(key string) (string, error) {
	s := d.String(key)
	if s == "" {
		return "", fmt.Errorf("%w: %q", errspkg.ErrMissingField, key)
	}
	return s, nil
}

// Map returns the nested document stored under key, or nil.
func (d Document) Map(key string) Document {
	switch m := d[key].(type) {
	case Document:
		return m
	case map[string]any:
		return Document(m)
	}
	return nil
}

func (d Document) UID() string { return d.String(FieldUID) }

// Clone returns a deep copy of maps and slices so a copy can be rewritten
// without touching the buffered original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(cloneMap(t))
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// Merge returns a new map holding base overlaid with overrides.
func Merge(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	maps.Copy(out, base)
	maps.Copy(out, overrides)
	return out
}

// IDString renders a scalar identifier (string or JSON number) as a string.
// Whole floats print without a fractional part so 42.0 matches "42".
func IDString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

// Strings converts a JSON list column into strings, reporting false when any
// element is not a string.
func Strings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
