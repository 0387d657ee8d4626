package rules

import "github.com/parcelgate/parcelgate/internal/domain/document"

// singleElementChange validates that proposed differs from existing by
// exactly one element, as exact multiset difference over subject ids.
// Element order is irrelevant; only membership and cardinality matter.
//
// Valid shapes:
//   - bootstrap: nil existing; any list-typed proposed value is accepted.
//     Callers must scope this to "no prior document": a document that
//     merely lacks the field passes an empty list instead, so only a
//     single-element array can establish it;
//   - add: |proposed| == |existing|+1, proposed minus existing leaves one
//     element, that element is not already present, and nothing was removed;
//   - remove: |proposed| == |existing|-1, existing minus proposed leaves one
//     element, and nothing was added.
//
// Everything else is rejected: multiple adds, multiple removes, a
// simultaneous add+remove, duplicate insertion of a present id, and
// non-list values on either side.
func singleElementChange(existing, proposed any) bool {
	after, ok := subjectList(proposed)
	if !ok {
		return false
	}
	if existing == nil {
		return true
	}
	before, ok := subjectList(existing)
	if !ok {
		return false
	}

	switch len(after) - len(before) {
	case 1:
		added := multisetSubtract(after, before)
		if len(added) != 1 || len(multisetSubtract(before, after)) != 0 {
			return false
		}
		// Re-inserting an id that is already a member is tampering with
		// multiplicity, not saving a listing.
		return !contains(before, added[0])
	case -1:
		removed := multisetSubtract(before, after)
		return len(removed) == 1 && len(multisetSubtract(after, before)) == 0
	default:
		return false
	}
}

// viewsIncrementedByOne validates that proposed is exactly existing plus
// one, over either float64 or integer representations. A missing or
// non-numeric counter on either side fails (fail-closed); listings start
// their counter explicitly at create time.
func viewsIncrementedByOne(existing, proposed any) bool {
	before, ok := document.NumericValue(existing)
	if !ok {
		return false
	}
	after, ok := document.NumericValue(proposed)
	if !ok {
		return false
	}
	return after == before+1
}

// subjectList converts a document value to a slice of subject ids.
// Accepts []string and JSON-decoded []any holding only strings.
func subjectList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// multisetSubtract returns the elements of a not matched in b, respecting
// multiplicity: each occurrence in b cancels at most one occurrence in a.
// Removal is by value, never by position.
func multisetSubtract(a, b []string) []string {
	counts := make(map[string]int, len(b))
	for _, e := range b {
		counts[e]++
	}
	var rest []string
	for _, e := range a {
		if counts[e] > 0 {
			counts[e]--
			continue
		}
		rest = append(rest, e)
	}
	return rest
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
