package query

import (
	"testing"

	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestFilterString(t *testing.T) {
	testcases := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"single", Eq("Name", "default"), "Name eq 'default'"},
		{"conjunction", And(Eq("Name", "COS-Boot"), Eq("Organization.Moid", "5f1c")), "Name eq 'COS-Boot' and Organization.Moid eq '5f1c'"},
		{"quote doubled", Eq("Name", "o'brien"), "Name eq 'o''brien'"},
		{"empty", Filter{}, ""},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.String())
		})
	}
}

func TestFilterMatches(t *testing.T) {
	doc := model.Document{
		"Name":         "COS-Boot",
		"Organization": map[string]any{"Moid": "5f1c", "Name": "default"},
	}

	assert.True(t, Eq("Name", "COS-Boot").Matches(doc))
	assert.True(t, And(Eq("Name", "COS-Boot"), Eq("Organization.Moid", "5f1c")).Matches(doc))
	assert.False(t, Eq("Organization.Moid", "other").Matches(doc))
	assert.False(t, Eq("Organization.Name.First", "x").Matches(doc))
	assert.False(t, Eq("Description", "").Matches(doc))
	assert.True(t, Filter{}.Matches(doc))
}

func TestQueryValues(t *testing.T) {
	q := &Query{Filter: Eq("Name", "default"), Select: "Moid"}

	values := q.Values()
	assert.Equal(t, "Name eq 'default'", values.Get("$filter"))
	assert.Equal(t, "Moid", values.Get("$select"))
	assert.False(t, values.Has("$expand"))

	var nilQuery *Query
	assert.Empty(t, nilQuery.Values())
}
