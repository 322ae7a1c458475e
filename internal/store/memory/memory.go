package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/store/query"
	"github.com/pkg/errors"
)

const (
	organizationsPath = model.OrganizationsPath
	organizationClass = "organization.Organization"
)

var (
	errNoBody = errors.New("memory store: empty body")

	// objectTypes are stamped on created resources the way the server does.
	objectTypes = map[string]string{
		model.BootPolicyPath:    "boot.PrecisionPolicy",
		model.OrganizationsPath: organizationClass,
	}
)

// Method names counted by Calls.
const (
	MethodGet    = "GET"
	MethodCreate = "CREATE"
	MethodUpdate = "UPDATE"
	MethodDelete = "DELETE"
)

// Store is a simulated Intersight resource client keeping resources in memory.
type Store struct {
	mu        sync.Mutex
	resources map[string][]model.Document
	calls     map[string]int
}

// New returns a store seeded with the named organizations.
func New(organizations ...string) *Store {
	s := &Store{
		resources: map[string][]model.Document{},
		calls:     map[string]int{},
	}

	for _, name := range organizations {
		s.resources[organizationsPath] = append(s.resources[organizationsPath], model.Document{
			"Moid":       newMoid(),
			"Name":       name,
			"ClassId":    organizationClass,
			"ObjectType": organizationClass,
		})
	}

	return s
}

// Seed stores a copy of doc under path, assigning a Moid when it has none.
func (s *Store) Seed(path string, doc model.Document) model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := normalize(doc)
	if stored.Moid() == "" {
		stored["Moid"] = newMoid()
	}

	s.resources[path] = append(s.resources[path], stored)

	return normalize(stored)
}

// Calls returns the number of calls made with the given method.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

// Resources returns copies of the resources stored under path.
func (s *Store) Resources(path string) []model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Document, 0, len(s.resources[path]))
	for _, doc := range s.resources[path] {
		out = append(out, normalize(doc))
	}

	return out
}

func (s *Store) Get(_ context.Context, path string, q *query.Query) (*query.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[MethodGet]++
	resp := &query.Response{TraceID: newTraceID()}

	var filter query.Filter
	if q != nil {
		filter = q.Filter
	}

	var matches []model.Document

	for _, doc := range s.resources[path] {
		if filter.Matches(s.expanded(doc, "Organization")) {
			matches = append(matches, doc)
		}
	}

	switch len(matches) {
	case 0:
		return resp, query.ErrNotFound
	case 1:
	default:
		return resp, query.ErrAmbiguousMatch
	}

	doc := normalize(matches[0])
	if q != nil {
		for _, field := range strings.Split(q.Expand, ",") {
			doc = s.expanded(doc, strings.TrimSpace(field))
		}

		doc = selected(doc, q.Select)
	}

	resp.Document = doc

	return resp, nil
}

func (s *Store) Create(_ context.Context, path string, body model.Document) (*query.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[MethodCreate]++

	if body == nil {
		return nil, errNoBody
	}

	doc := normalize(body)
	doc["Moid"] = newMoid()

	if objectType, ok := objectTypes[path]; ok {
		doc["ClassId"] = objectType
		doc["ObjectType"] = objectType
	}

	if org, ok := doc["Organization"].(map[string]any); ok {
		org["ObjectType"] = organizationClass
		org["ClassId"] = "mo.MoRef"
	}

	s.resources[path] = append(s.resources[path], doc)

	return &query.Response{Document: normalize(doc), TraceID: newTraceID()}, nil
}

// serverFields are kept from the stored resource when it is replaced.
var serverFields = []string{"Moid", "Organization", "ClassId", "ObjectType"}

// Update replaces every resource matched by the filter with the body. The
// server assigned fields and the Organization reference are kept.
func (s *Store) Update(_ context.Context, path string, filter query.Filter, body model.Document) (*query.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[MethodUpdate]++
	resp := &query.Response{TraceID: newTraceID()}

	if body == nil {
		return resp, errNoBody
	}

	updated := 0

	for i, doc := range s.resources[path] {
		if !filter.Matches(s.expanded(doc, "Organization")) {
			continue
		}

		replaced := normalize(body)
		for _, field := range serverFields {
			delete(replaced, field)

			if v, ok := doc[field]; ok {
				replaced[field] = v
			}
		}

		s.resources[path][i] = replaced
		resp.Document = normalize(replaced)
		updated++
	}

	if updated == 0 {
		return resp, query.ErrNotFound
	}

	return resp, nil
}

func (s *Store) Delete(_ context.Context, path, moid string) (*query.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[MethodDelete]++
	resp := &query.Response{TraceID: newTraceID(), Document: model.Document{}}

	for i, doc := range s.resources[path] {
		if doc.Moid() == moid {
			s.resources[path] = append(s.resources[path][:i], s.resources[path][i+1:]...)
			return resp, nil
		}
	}

	return resp, query.ErrNotFound
}

// expanded replaces a Moid reference held in field by the referenced
// organization, mimicking $expand.
func (s *Store) expanded(doc model.Document, field string) model.Document {
	if field != "Organization" {
		return doc
	}

	ref, ok := doc[field].(map[string]any)
	if !ok {
		return doc
	}

	moid, _ := ref["Moid"].(string)

	for _, org := range s.resources[organizationsPath] {
		if org.Moid() == moid {
			out := model.Document{}
			for k, v := range doc {
				out[k] = v
			}

			out[field] = map[string]any(normalize(org))

			return out
		}
	}

	return doc
}

func selected(doc model.Document, sel string) model.Document {
	if sel == "" {
		return doc
	}

	out := model.Document{}

	for _, field := range strings.Split(sel, ",") {
		field = strings.TrimSpace(field)
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}

	return out
}

// normalize returns a deep copy of the document holding only JSON types, as
// if it had been sent over the wire.
func normalize(doc model.Document) model.Document {
	raw, err := json.Marshal(doc)
	if err != nil {
		return model.Document{}
	}

	out := model.Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.Document{}
	}

	return out
}

func newMoid() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func newTraceID() string {
	return uuid.NewString()
}
