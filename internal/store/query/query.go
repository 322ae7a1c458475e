package query

import (
	"net/url"
	"strings"

	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/pkg/errors"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrAmbiguousMatch = errors.New("more than one resource matched")
)

// Term is a single `<field> eq '<value>'` predicate. Field may be a dotted
// path into nested objects, e.g. Organization.Moid.
type Term struct {
	Field string
	Value string
}

// Filter is a conjunction of equality terms.
type Filter []Term

// Eq returns a filter with the single term field eq 'value'.
func Eq(field, value string) Filter {
	return Filter{{Field: field, Value: value}}
}

// And joins the filters into one conjunction.
func And(filters ...Filter) Filter {
	out := Filter{}
	for _, f := range filters {
		out = append(out, f...)
	}

	return out
}

// String renders the filter in the Intersight $filter syntax.
func (f Filter) String() string {
	terms := make([]string, 0, len(f))
	for _, t := range f {
		terms = append(terms, t.Field+" eq '"+strings.ReplaceAll(t.Value, "'", "''")+"'")
	}

	return strings.Join(terms, " and ")
}

// Matches reports whether the document satisfies every term of the filter.
func (f Filter) Matches(doc model.Document) bool {
	for _, t := range f {
		value, ok := Lookup(doc, t.Field)
		if !ok {
			return false
		}

		s, ok := value.(string)
		if !ok || s != t.Value {
			return false
		}
	}

	return true
}

// Lookup resolves a dotted field path within the document.
func Lookup(doc model.Document, field string) (any, bool) {
	var current any = map[string]any(doc)

	for _, part := range strings.Split(field, ".") {
		var m map[string]any

		switch v := current.(type) {
		case model.Document:
			m = v
		case map[string]any:
			m = v
		default:
			return nil, false
		}

		next, ok := m[part]
		if !ok {
			return nil, false
		}

		current = next
	}

	return current, true
}

// Query are the OData style query options of a GET request.
type Query struct {
	Filter Filter
	Expand string
	Select string
}

// Values returns the query as URL query parameters.
func (q *Query) Values() url.Values {
	values := url.Values{}
	if q == nil {
		return values
	}

	if len(q.Filter) > 0 {
		values.Set("$filter", q.Filter.String())
	}

	if q.Expand != "" {
		values.Set("$expand", q.Expand)
	}

	if q.Select != "" {
		values.Set("$select", q.Select)
	}

	return values
}

// Response is the outcome of a resource client call.
type Response struct {
	Document model.Document
	// TraceID correlates the call with the server side logs.
	TraceID string
}
