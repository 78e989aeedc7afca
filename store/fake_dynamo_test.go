package store_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB operations the store
// issues. It understands the store's own condition expressions and ignores
// FilterExpression, which the store treats as an optimisation only.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// throttleBatch makes the first BatchGetItem call return every key but
	// one as unprocessed.
	throttleBatch bool

	batchCalls int
	txCalls    int
	lastTx     *dynamodb.TransactWriteItemsInput
	queries    []*dynamodb.QueryInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(key map[string]types.AttributeValue) string {
	return key["pk"].(*types.AttributeValueMemberS).Value
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// conditionHolds evaluates the two conditions the store writes.
func (f *fakeDynamo) conditionHolds(pk string, cond *string, values map[string]types.AttributeValue) bool {
	if cond == nil {
		return true
	}
	existing, exists := f.items[pk]
	switch *cond {
	case "attribute_not_exists(pk)":
		return !exists
	case "#version = :expected":
		if !exists {
			return false
		}
		have := existing["version"].(*types.AttributeValueMemberN).Value
		want := values[":expected"].(*types.AttributeValueMemberN).Value
		return have == want
	}
	panic(fmt.Sprintf("unexpected condition %q", *cond))
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[pkOf(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := pkOf(in.Item)
	if !f.conditionHolds(pk, in.ConditionExpression, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[pk] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++

	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	for table, req := range in.RequestItems {
		if len(req.Keys) > 100 {
			return nil, fmt.Errorf("too many keys: %d", len(req.Keys))
		}
		keys := req.Keys
		if f.throttleBatch && len(keys) > 1 {
			f.throttleBatch = false
			out.UnprocessedKeys[table] = types.KeysAndAttributes{Keys: keys[1:], ConsistentRead: req.ConsistentRead}
			keys = keys[:1]
		}
		for _, k := range keys {
			if item, ok := f.items[pkOf(k)]; ok {
				out.Responses[table] = append(out.Responses[table], copyItem(item))
			}
		}
	}
	return out, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)

	kindPK := in.ExpressionAttributeValues[":kpk"].(*types.AttributeValueMemberS).Value
	var prefix string
	if v, ok := in.ExpressionAttributeValues[":ancestor"]; ok {
		prefix = v.(*types.AttributeValueMemberS).Value
	}

	var pks []string
	for pk, item := range f.items {
		if item["kind_pk"].(*types.AttributeValueMemberS).Value == kindPK && strings.HasPrefix(pk, prefix) {
			pks = append(pks, pk)
		}
	}
	sort.Strings(pks)

	out := &dynamodb.QueryOutput{}
	for _, pk := range pks {
		out.Items = append(out.Items, copyItem(f.items[pk]))
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	f.lastTx = in

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, item := range in.TransactItems {
		reasons[i].Code = aws.String("None")
		var ok bool
		switch {
		case item.Put != nil:
			ok = f.conditionHolds(pkOf(item.Put.Item), item.Put.ConditionExpression, item.Put.ExpressionAttributeValues)
		case item.ConditionCheck != nil:
			ok = f.conditionHolds(pkOf(item.ConditionCheck.Key), item.ConditionCheck.ConditionExpression, item.ConditionCheck.ExpressionAttributeValues)
		default:
			return nil, fmt.Errorf("unexpected transact item %d", i)
		}
		if !ok {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range in.TransactItems {
		if item.Put != nil {
			f.items[pkOf(item.Put.Item)] = copyItem(item.Put.Item)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
