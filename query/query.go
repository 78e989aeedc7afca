// Package query compiles caller-supplied conference filters into a
// store.Query.
//
// Filterable fields and operators are fixed tables. The compiled query keeps
// the filters conjunctive and sorts first by the single field that carries
// inequality filters, if any, then by name:
//
//	c := query.MustNewCompiler(model.KindConference, query.ConferenceFields)
//	q, err := c.Compile([]query.Filter{
//	    {Field: "MAX_ATTENDEES", Operator: "GT", Value: "10"},
//	    {Field: "CITY", Operator: "EQ", Value: "London"},
//	})
package query

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/store"
)

// ErrInvalidFilter is matched by InvalidFilterError.
var ErrInvalidFilter = errors.New("query: invalid filter")

// SecondaryOrder is the property every compiled query is finally sorted by.
const SecondaryOrder = "name"

// Type is the comparable type of a filterable property.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
)

// Field maps a filter field name to the store property it constrains.
type Field struct {
	Name     string
	Property string
	Type     Type
}

// ConferenceFields are the filterable conference properties. TOPIC
// constrains a list-valued property.
var ConferenceFields = []Field{
	{Name: "CITY", Property: "city", Type: TypeString},
	{Name: "TOPIC", Property: "topics", Type: TypeString},
	{Name: "MONTH", Property: "month", Type: TypeInteger},
	{Name: "MAX_ATTENDEES", Property: "maxAttendees", Type: TypeInteger},
}

var operators = map[string]store.Operator{
	"EQ":   store.OpEqual,
	"GT":   store.OpGreaterThan,
	"GTEQ": store.OpGreaterOrEqual,
	"LT":   store.OpLessThan,
	"LTEQ": store.OpLessOrEqual,
	"NE":   store.OpNotEqual,
}

// Filter is one caller-supplied predicate, e.g. {"MONTH", "GT", "3"}.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// InvalidFilterError reports a filter that could not be compiled. It is a
// validation error.
type InvalidFilterError struct {
	Field    string
	Operator string
	Value    string
	Reason   string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter {%s %s %q}: %s", e.Field, e.Operator, e.Value, e.Reason)
}

func (e *InvalidFilterError) Is(target error) bool {
	return target == ErrInvalidFilter || target == apperr.ErrValidation
}

// Compiler turns filter lists into queries over one kind. It is immutable
// after construction and safe for concurrent use.
type Compiler struct {
	kind   string
	fields map[string]Field
}

// NewCompiler validates fields and returns a compiler for kind.
func NewCompiler(kind string, fields []Field) (*Compiler, error) {
	if kind == "" {
		return nil, errors.New("query: kind is required")
	}
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Property == "" {
			return nil, fmt.Errorf("query: field %+v needs a name and a property", f)
		}
		if f.Type != TypeString && f.Type != TypeInteger {
			return nil, fmt.Errorf("query: field %s has unknown type %q", f.Name, f.Type)
		}
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("query: field %s declared twice", f.Name)
		}
		byName[f.Name] = f
	}
	return &Compiler{kind: kind, fields: byName}, nil
}

// MustNewCompiler is like NewCompiler but panics on an invalid table.
func MustNewCompiler(kind string, fields []Field) *Compiler {
	c, err := NewCompiler(kind, fields)
	if err != nil {
		panic(err)
	}
	return c
}

// Compile validates filters and builds the query. At most one distinct
// field may carry inequality operators; that field leads the sort order.
func (c *Compiler) Compile(filters []Filter) (*store.Query, error) {
	q := store.NewQuery(c.kind)
	inequality := ""

	for _, f := range filters {
		field, ok := c.fields[f.Field]
		if !ok {
			return nil, invalid(f, "unknown field")
		}
		op, ok := operators[f.Operator]
		if !ok {
			return nil, invalid(f, "unknown operator")
		}

		value, err := field.coerce(f.Value)
		if err != nil {
			return nil, invalid(f, err.Error())
		}

		if op.IsInequality() {
			if inequality != "" && inequality != field.Property {
				return nil, invalid(f, "Inequality filter is allowed on only one field")
			}
			inequality = field.Property
		}
		q.Where(field.Property, op, value)
	}

	if inequality != "" {
		q.OrderBy(inequality)
	}
	q.OrderBy(SecondaryOrder)
	return q, nil
}

func (f Field) coerce(value string) (any, error) {
	if f.Type == TypeString {
		return value, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("%s expects an integer", f.Name)
	}
	return n, nil
}

func invalid(f Filter, reason string) error {
	return &InvalidFilterError{Field: f.Field, Operator: f.Operator, Value: f.Value, Reason: reason}
}
