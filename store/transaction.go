package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxTransactItems is the DynamoDB limit on items in one TransactWriteItems.
const maxTransactItems = 100

// dynamoTx records the version of every document it reads and buffers
// writes until commit.
type dynamoTx struct {
	s      *Store
	reads  map[string]*Document // nil value: read and found missing
	writes map[string]*Document
	order  []string
}

func newDynamoTx(s *Store) *dynamoTx {
	return &dynamoTx{
		s:      s,
		reads:  make(map[string]*Document),
		writes: make(map[string]*Document),
	}
}

func (t *dynamoTx) Get(ctx context.Context, key *Key) (*Document, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	path := key.Path()
	if doc, ok := t.writes[path]; ok {
		return doc.Clone(), nil
	}
	if doc, ok := t.reads[path]; ok {
		if doc == nil {
			return nil, ErrNotFound
		}
		return doc.Clone(), nil
	}

	doc, err := t.s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		t.reads[path] = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.reads[path] = doc
	return doc.Clone(), nil
}

func (t *dynamoTx) Put(doc *Document) {
	path := doc.Key.Path()
	if _, ok := t.writes[path]; !ok {
		t.order = append(t.order, path)
	}
	t.writes[path] = doc.Clone()
}

// expected returns the version a write of path must find in the table.
func (t *dynamoTx) expected(path string, doc *Document) int64 {
	if read, ok := t.reads[path]; ok {
		if read == nil {
			return 0
		}
		return read.Version
	}
	return doc.Version
}

func (t *dynamoTx) commit(ctx context.Context) error {
	if len(t.writes) == 0 {
		return nil
	}

	var items []types.TransactWriteItem
	for _, path := range t.order {
		doc := t.writes[path]
		if err := t.s.registry.Validate(doc.Key); err != nil {
			return err
		}
		version := t.expected(path, doc)
		item, err := marshalDocument(doc, version+1, t.s.config.NumShards)
		if err != nil {
			return err
		}
		names := map[string]string{}
		values := map[string]types.AttributeValue{}
		put := &types.Put{
			TableName:           aws.String(t.s.config.Table),
			Item:                item,
			ConditionExpression: aws.String(expectVersion(version, names, values)),
		}
		if len(names) > 0 {
			put.ExpressionAttributeNames = names
			put.ExpressionAttributeValues = values
		}
		items = append(items, types.TransactWriteItem{Put: put})
	}

	// Documents read but not written must still be unchanged at commit.
	for path, doc := range t.reads {
		if _, written := t.writes[path]; written {
			continue
		}
		var version int64
		if doc != nil {
			version = doc.Version
		}
		names := map[string]string{}
		values := map[string]types.AttributeValue{}
		check := &types.ConditionCheck{
			TableName:           aws.String(t.s.config.Table),
			Key:                 PK{attrPK: &types.AttributeValueMemberS{Value: path}},
			ConditionExpression: aws.String(expectVersion(version, names, values)),
		}
		if len(names) > 0 {
			check.ExpressionAttributeNames = names
			check.ExpressionAttributeValues = values
		}
		items = append(items, types.TransactWriteItem{ConditionCheck: check})
	}

	if len(items) > maxTransactItems {
		return fmt.Errorf("%w: %d items", ErrTooManyWrites, len(items))
	}

	_, err := t.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err)
}

// mapTransactionError maps DynamoDB transaction errors. A failed version
// condition or a conflicting concurrent transaction both mean the body must
// be re-run against fresh reads.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed", "TransactionConflict":
				return fmt.Errorf("%w: %s", ErrConcurrentModification, *reason.Code)
			}
		}
		return err
	}

	var conflictErr *types.TransactionConflictException
	if errors.As(err, &conflictErr) {
		return ErrConcurrentModification
	}
	return err
}
