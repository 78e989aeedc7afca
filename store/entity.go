package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Document is a stored entity: its key, its properties and the optimistic
// lock version it was read at (0 for a document that has never been
// written).
type Document struct {
	Key        *Key
	Properties map[string]any
	Version    int64
}

// NewDocument returns an empty, unsaved document for key.
func NewDocument(key *Key) *Document {
	return &Document{Key: key, Properties: map[string]any{}}
}

// Clone returns a deep copy of the document. Slice-valued properties are
// copied so the clone can be mutated independently.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	props := make(map[string]any, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = cloneValue(v)
	}
	return &Document{Key: d.Key, Properties: props, Version: d.Version}
}

// Set stores a property, normalizing integer types to int64.
func (d *Document) Set(name string, value any) {
	if d.Properties == nil {
		d.Properties = map[string]any{}
	}
	d.Properties[name] = normalize(value)
}

// String returns a string property or "".
func (d *Document) String(name string) string {
	s, _ := d.Properties[name].(string)
	return s
}

// Int returns an integer property or 0.
func (d *Document) Int(name string) int64 {
	n, _ := toInt64(d.Properties[name])
	return n
}

// Strings returns a list-of-strings property. The returned slice is a copy.
func (d *Document) Strings(name string) []string {
	switch v := d.Properties[name].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Tx is the view of the store inside a transaction. Reads observe the
// transaction's own buffered writes; writes become visible to other
// callers only when the transaction commits.
type Tx interface {
	Get(ctx context.Context, key *Key) (*Document, error)
	Put(doc *Document)
}

// TxFunc is a transaction body. It may run several times if the commit
// conflicts, so it must not have side effects outside tx.
type TxFunc func(ctx context.Context, tx Tx) error

// EntityStore is a document store keyed by hierarchical keys.
type EntityStore interface {
	// Get returns the document for key or ErrNotFound.
	Get(ctx context.Context, key *Key) (*Document, error)

	// GetMulti returns one entry per key, in order; missing documents are nil.
	GetMulti(ctx context.Context, keys []*Key) ([]*Document, error)

	// Put writes doc if its stored version still equals doc.Version and
	// bumps doc.Version on success.
	Put(ctx context.Context, doc *Document) error

	// AllocateChildID returns a fresh id for a key under parent.
	AllocateChildID(ctx context.Context, parent *Key) (string, error)

	// Query returns the documents matching q, in q.Orders order.
	Query(ctx context.Context, q *Query) ([]*Document, error)

	// RunTransaction runs fn and commits its writes atomically, re-running
	// fn when the commit conflicts with a concurrent transaction.
	RunTransaction(ctx context.Context, fn TxFunc) error
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	}
	return v
}

func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
