package store

import (
	"sort"
)

// Operator is a comparison operator usable in a Filter.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpNotEqual       Operator = "!="
)

// IsInequality reports whether op is anything other than equality.
func (op Operator) IsInequality() bool {
	return op != OpEqual
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpNotEqual:
		return true
	}
	return false
}

// Filter is a single predicate on a document property. Value is a string or
// an integer.
type Filter struct {
	Property string
	Op       Operator
	Value    any
}

// Order sorts query results by a property.
type Order struct {
	Property   string
	Descending bool
}

// Query selects documents of one kind, optionally restricted to the
// descendants of Ancestor. Filters are conjunctive.
type Query struct {
	Kind     string
	Ancestor *Key
	Filters  []Filter
	Orders   []Order
	Limit    int
}

// NewQuery returns a query over every document of kind.
func NewQuery(kind string) *Query {
	return &Query{Kind: kind}
}

// WithAncestor restricts q to descendants of ancestor.
func (q *Query) WithAncestor(ancestor *Key) *Query {
	q.Ancestor = ancestor
	return q
}

// Where appends a filter.
func (q *Query) Where(property string, op Operator, value any) *Query {
	q.Filters = append(q.Filters, Filter{Property: property, Op: op, Value: normalize(value)})
	return q
}

// OrderBy appends an ascending sort order.
func (q *Query) OrderBy(property string) *Query {
	q.Orders = append(q.Orders, Order{Property: property})
	return q
}

// Match reports whether doc satisfies the query's kind, ancestor and
// filters. A list-valued property matches if any element satisfies the
// comparison, except for OpNotEqual which requires that no element equals
// the value.
func (q *Query) Match(doc *Document) bool {
	if doc == nil || doc.Key == nil {
		return false
	}
	if q.Kind != "" && doc.Key.Kind != q.Kind {
		return false
	}
	if q.Ancestor != nil && !doc.Key.HasAncestor(q.Ancestor) {
		return false
	}
	for _, f := range q.Filters {
		if !matchFilter(doc.Properties[f.Property], f) {
			return false
		}
	}
	return true
}

func matchFilter(prop any, f Filter) bool {
	var elems []any
	switch v := prop.(type) {
	case nil:
		return false
	case []string:
		for _, s := range v {
			elems = append(elems, s)
		}
	case []any:
		elems = v
	default:
		return compare(prop, f.Op, f.Value)
	}

	if f.Op == OpNotEqual {
		for _, e := range elems {
			if compare(e, OpEqual, f.Value) {
				return false
			}
		}
		return true
	}
	for _, e := range elems {
		if compare(e, f.Op, f.Value) {
			return true
		}
	}
	return false
}

// compare applies op to a and b. Values of different types never match.
func compare(a any, op Operator, b any) bool {
	c, ok := order(a, b)
	if !ok {
		return false
	}
	switch op {
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c != 0
	case OpGreaterThan:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	case OpLessThan:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	}
	return false
}

// order returns -1, 0 or 1 comparing a with b, and false if the values are
// not comparable.
func order(a, b any) (int, bool) {
	if ai, ok := toInt64(a); ok {
		bi, ok := toInt64(b)
		if !ok {
			return 0, false
		}
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		}
		return 0, true
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok || ab != bb {
			return 0, false
		}
		return 0, true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// SortDocuments orders docs by orders. Documents that compare equal keep a
// deterministic order by key path.
func SortDocuments(docs []*Document, orders []Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			c := compareForSort(docs[i].Properties[o.Property], docs[j].Properties[o.Property])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return docs[i].Key.Path() < docs[j].Key.Path()
	})
}

// compareForSort orders missing values first and list values by their
// smallest element.
func compareForSort(a, b any) int {
	a, b = sortValue(a), sortValue(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, ok := order(a, b)
	if !ok {
		return 0
	}
	return c
}

func sortValue(v any) any {
	var elems []any
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			elems = append(elems, s)
		}
	case []any:
		elems = t
	default:
		return v
	}
	var least any
	for _, e := range elems {
		if least == nil {
			least = e
			continue
		}
		if c, ok := order(e, least); ok && c < 0 {
			least = e
		}
	}
	return least
}

// Apply filters, sorts and limits docs according to q, reusing the backing
// array of docs. Backends that cannot evaluate the whole query natively run
// their candidates through it.
func (q *Query) Apply(docs []*Document) []*Document {
	out := docs[:0]
	for _, d := range docs {
		if q.Match(d) {
			out = append(out, d)
		}
	}
	SortDocuments(out, q.Orders)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
