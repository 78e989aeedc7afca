package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/conference/internal/shard"
)

// Attribute names of a stored document item.
const (
	attrPK        = "pk"
	attrKind      = "kind"
	attrKindPK    = "kind_pk"
	attrParent    = "parent"
	attrVersion   = "version"
	attrProps     = "props"
	attrUpdatedAt = "updated_at"
)

// keyOf returns the primary key of the item stored for key.
func keyOf(key *Key) PK {
	return PK{attrPK: &types.AttributeValueMemberS{Value: key.Path()}}
}

// marshalDocument builds the item written for doc at the given version.
func marshalDocument(doc *Document, version int64, numShards int) (map[string]types.AttributeValue, error) {
	props, err := attributevalue.MarshalMap(doc.Properties)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", doc.Key, err)
	}

	path := doc.Key.Path()
	item := map[string]types.AttributeValue{
		attrPK:        &types.AttributeValueMemberS{Value: path},
		attrKind:      &types.AttributeValueMemberS{Value: doc.Key.Kind},
		attrKindPK:    &types.AttributeValueMemberS{Value: shard.KindPK(doc.Key.Kind, path, numShards)},
		attrVersion:   &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		attrProps:     &types.AttributeValueMemberM{Value: props},
		attrUpdatedAt: &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
	if doc.Key.Parent != nil {
		item[attrParent] = &types.AttributeValueMemberS{Value: doc.Key.Parent.Path()}
	}
	return item, nil
}

// unmarshalDocument converts a stored item back to a Document.
func unmarshalDocument(raw map[string]types.AttributeValue) (*Document, error) {
	pk, ok := raw[attrPK].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("%w: item without %s", ErrInvalidKey, attrPK)
	}
	key, err := ParsePath(pk.Value)
	if err != nil {
		return nil, err
	}

	doc := NewDocument(key)
	if v, ok := raw[attrVersion].(*types.AttributeValueMemberN); ok {
		doc.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if m, ok := raw[attrProps].(*types.AttributeValueMemberM); ok {
		for name, av := range m.Value {
			doc.Properties[name] = decodeValue(av)
		}
	}
	return doc, nil
}

// decodeValue maps an attribute value onto the canonical property types:
// string, int64, bool, []string, []any and map[string]any.
func decodeValue(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(v.Value, 64)
		return f
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberSS:
		return append([]string(nil), v.Value...)
	case *types.AttributeValueMemberL:
		strs := make([]string, 0, len(v.Value))
		for _, item := range v.Value {
			s, ok := item.(*types.AttributeValueMemberS)
			if !ok {
				out := make([]any, len(v.Value))
				for i, item := range v.Value {
					out[i] = decodeValue(item)
				}
				return out
			}
			strs = append(strs, s.Value)
		}
		return strs
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = decodeValue(item)
		}
		return out
	}
	return nil
}

// expectVersion returns the condition under which a write of a document
// read at version may proceed, adding its placeholders to names and values.
func expectVersion(version int64, names map[string]string, values map[string]types.AttributeValue) string {
	if version == 0 {
		return "attribute_not_exists(pk)"
	}
	names["#version"] = attrVersion
	values[":expected"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)}
	return "#version = :expected"
}

// dynamoOperator maps a filter operator to DynamoDB expression syntax.
func dynamoOperator(op Operator) string {
	if op == OpNotEqual {
		return "<>"
	}
	return string(op)
}

// filterExpression renders filters as a DynamoDB FilterExpression. The
// expression admits a superset of the matching items: list-valued
// properties always pass and are checked by Query.Match afterwards.
func filterExpression(filters []Filter, names map[string]string, values map[string]types.AttributeValue) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	names["#props"] = attrProps
	values[":listType"] = &types.AttributeValueMemberS{Value: "L"}

	var expr string
	for i, f := range filters {
		av, err := attributevalue.Marshal(f.Value)
		if err != nil {
			return "", fmt.Errorf("marshal filter %s: %w", f.Property, err)
		}
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":f%d", i)
		names[name] = f.Property
		values[value] = av

		clause := fmt.Sprintf("(attribute_type(#props.%s, :listType) OR #props.%s %s %s)",
			name, name, dynamoOperator(f.Op), value)
		if expr != "" {
			expr += " AND "
		}
		expr += clause
	}
	return expr, nil
}
