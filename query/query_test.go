package query_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/query"
	"github.com/jacentio/conference/store"
)

func newCompiler(t *testing.T) *query.Compiler {
	t.Helper()
	c, err := query.NewCompiler("Conference", query.ConferenceFields)
	require.NoError(t, err)
	return c
}

func TestCompile_InequalityLeadsOrder(t *testing.T) {
	c := newCompiler(t)

	q, err := c.Compile([]query.Filter{
		{Field: "MAX_ATTENDEES", Operator: "GT", Value: "10"},
		{Field: "CITY", Operator: "EQ", Value: "London"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Conference", q.Kind)
	assert.Equal(t, []store.Filter{
		{Property: "maxAttendees", Op: store.OpGreaterThan, Value: int64(10)},
		{Property: "city", Op: store.OpEqual, Value: "London"},
	}, q.Filters)
	assert.Equal(t, []store.Order{{Property: "maxAttendees"}, {Property: "name"}}, q.Orders)
}

func TestCompile_SameFieldInequalities(t *testing.T) {
	c := newCompiler(t)

	q, err := c.Compile([]query.Filter{
		{Field: "MONTH", Operator: "GT", Value: "3"},
		{Field: "MONTH", Operator: "LT", Value: "9"},
	})
	require.NoError(t, err)

	assert.Len(t, q.Filters, 2)
	assert.Equal(t, []store.Order{{Property: "month"}, {Property: "name"}}, q.Orders)
}

func TestCompile_NoFilters(t *testing.T) {
	q, err := newCompiler(t).Compile(nil)
	require.NoError(t, err)
	assert.Empty(t, q.Filters)
	assert.Equal(t, []store.Order{{Property: "name"}}, q.Orders)
}

func TestCompile_EqualitiesOnly(t *testing.T) {
	q, err := newCompiler(t).Compile([]query.Filter{
		{Field: "CITY", Operator: "EQ", Value: "Paris"},
		{Field: "TOPIC", Operator: "EQ", Value: "Go"},
		{Field: "MONTH", Operator: "EQ", Value: "6"},
	})
	require.NoError(t, err)
	assert.Len(t, q.Filters, 3)
	assert.Equal(t, []store.Order{{Property: "name"}}, q.Orders)
}

func TestCompile_Operators(t *testing.T) {
	want := map[string]store.Operator{
		"EQ":   store.OpEqual,
		"GT":   store.OpGreaterThan,
		"GTEQ": store.OpGreaterOrEqual,
		"LT":   store.OpLessThan,
		"LTEQ": store.OpLessOrEqual,
		"NE":   store.OpNotEqual,
	}
	c := newCompiler(t)
	for name, op := range want {
		t.Run(name, func(t *testing.T) {
			q, err := c.Compile([]query.Filter{{Field: "MONTH", Operator: name, Value: "1"}})
			require.NoError(t, err)
			assert.Equal(t, op, q.Filters[0].Op)
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		filters []query.Filter
		reason  string
	}{
		{
			name:    "unknown field",
			filters: []query.Filter{{Field: "COUNTRY", Operator: "EQ", Value: "UK"}},
			reason:  "unknown field",
		},
		{
			name:    "unknown operator",
			filters: []query.Filter{{Field: "CITY", Operator: "LIKE", Value: "Lon"}},
			reason:  "unknown operator",
		},
		{
			name:    "non numeric month",
			filters: []query.Filter{{Field: "MONTH", Operator: "EQ", Value: "June"}},
			reason:  "MONTH expects an integer",
		},
		{
			name: "two inequality fields",
			filters: []query.Filter{
				{Field: "MONTH", Operator: "GT", Value: "3"},
				{Field: "CITY", Operator: "EQ", Value: "London"},
				{Field: "MAX_ATTENDEES", Operator: "LT", Value: "100"},
			},
			reason: "Inequality filter is allowed on only one field",
		},
		{
			name: "not equal counts as inequality",
			filters: []query.Filter{
				{Field: "CITY", Operator: "NE", Value: "London"},
				{Field: "TOPIC", Operator: "NE", Value: "Go"},
			},
			reason: "Inequality filter is allowed on only one field",
		},
	}

	c := newCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.filters)
			require.Error(t, err)
			assert.ErrorIs(t, err, query.ErrInvalidFilter)
			assert.True(t, apperr.IsValidation(err))

			var ife *query.InvalidFilterError
			require.True(t, errors.As(err, &ife))
			assert.Equal(t, tt.reason, ife.Reason)
		})
	}
}

func TestCompile_ErrorNamesOffendingFilter(t *testing.T) {
	_, err := newCompiler(t).Compile([]query.Filter{{Field: "MAX_ATTENDEES", Operator: "GT", Value: "lots"}})

	var ife *query.InvalidFilterError
	require.True(t, errors.As(err, &ife))
	assert.Equal(t, "MAX_ATTENDEES", ife.Field)
	assert.Equal(t, "GT", ife.Operator)
	assert.Equal(t, "lots", ife.Value)
	assert.Contains(t, err.Error(), `"lots"`)
}

func TestNewCompiler_RejectsBadTables(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		fields []query.Field
	}{
		{"no kind", "", query.ConferenceFields},
		{"empty property", "Conference", []query.Field{{Name: "CITY", Type: query.TypeString}}},
		{"unknown type", "Conference", []query.Field{{Name: "CITY", Property: "city", Type: "date"}}},
		{"duplicate", "Conference", []query.Field{
			{Name: "CITY", Property: "city", Type: query.TypeString},
			{Name: "CITY", Property: "town", Type: query.TypeString},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := query.NewCompiler(tt.kind, tt.fields)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { query.MustNewCompiler("", nil) })
}

func TestCompile_MatchesDocuments(t *testing.T) {
	q, err := newCompiler(t).Compile([]query.Filter{
		{Field: "MAX_ATTENDEES", Operator: "GT", Value: "10"},
		{Field: "CITY", Operator: "EQ", Value: "London"},
		{Field: "TOPIC", Operator: "EQ", Value: "Go"},
	})
	require.NoError(t, err)

	doc := func(id, city string, capacity int, topics ...string) *store.Document {
		d := store.NewDocument(store.NewKey("Conference", id, nil))
		d.Set("name", id)
		d.Set("city", city)
		d.Set("maxAttendees", capacity)
		d.Set("topics", topics)
		return d
	}

	docs := []*store.Document{
		doc("b", "London", 50, "Go", "Cloud"),
		doc("a", "London", 50, "Go"),
		doc("c", "London", 20, "Go"),
		doc("d", "London", 10, "Go"),
		doc("e", "Paris", 50, "Go"),
		doc("f", "London", 50, "Rust"),
	}

	got := q.Apply(docs)
	var names []string
	for _, d := range got {
		names = append(names, d.String("name"))
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestCompile_Concurrent(t *testing.T) {
	c := newCompiler(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Compile([]query.Filter{{Field: "MONTH", Operator: "GTEQ", Value: "2"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
