// Package document contains the schemaless document model shared by the
// rule tables, the principal resolver, and the document store adapters.
package document

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Document is a schemaless document as stored in a collection.
// Values follow JSON decoding conventions: strings, bools, numbers
// (float64 or int), nested maps, and []any lists.
type Document map[string]any

// String returns the value of key as a string.
// The second return is false if the key is absent or not a string.
func (d Document) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a deep copy of the document.
// Mutating the copy never affects the original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = cloneValue(e)
		}
		return m
	case Document:
		return map[string]any(val.Clone())
	case []any:
		l := make([]any, len(val))
		for i, e := range val {
			l[i] = cloneValue(e)
		}
		return l
	case []string:
		l := make([]string, len(val))
		copy(l, val)
		return l
	default:
		return v
	}
}

// ChangedFields returns the sorted set of field names whose values differ
// between existing and proposed. A field present on only one side counts
// as changed. A nil existing document means every proposed field changed.
func ChangedFields(existing, proposed Document) []string {
	seen := make(map[string]struct{}, len(existing)+len(proposed))
	var changed []string
	for k, ev := range existing {
		seen[k] = struct{}{}
		pv, ok := proposed[k]
		if !ok || !ValueEqual(ev, pv) {
			changed = append(changed, k)
		}
	}
	for k := range proposed {
		if _, ok := seen[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// ValueEqual reports whether two document values are equal.
// Numeric values compare by value regardless of Go representation,
// since JSON decoding yields float64 while programmatic writes may
// carry int. Everything else compares structurally.
func ValueEqual(a, b any) bool {
	af, aok := NumericValue(a)
	bf, bok := NumericValue(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// NumericValue converts a document value to float64.
// The second return is false for non-numeric values.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
