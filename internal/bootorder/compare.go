package bootorder

import (
	"encoding/json"
	"reflect"

	"github.com/metal-toolbox/bootorder/internal/model"
)

// Matches reports whether every value in desired is equal to the value at the
// same location in actual. Keys present only in actual (server assigned and
// read-only fields) are ignored; lists are compared element by element.
func Matches(desired, actual any) bool {
	if dm, ok := asMap(desired); ok {
		am, ok := asMap(actual)
		if !ok {
			return false
		}

		for key, value := range dm {
			other, exists := am[key]
			if !exists || !Matches(value, other) {
				return false
			}
		}

		return true
	}

	if dl, ok := asList(desired); ok {
		al, ok := asList(actual)
		if !ok || len(dl) != len(al) {
			return false
		}

		for i := range dl {
			if !Matches(dl[i], al[i]) {
				return false
			}
		}

		return true
	}

	if dn, ok := asNumber(desired); ok {
		an, ok := asNumber(actual)
		return ok && dn == an
	}

	return reflect.DeepEqual(desired, actual)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case model.Document:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []model.Document:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}

		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}

		return out, true
	default:
		return nil, false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
