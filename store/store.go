package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/conference/internal/shard"
)

// batchGetLimit is the maximum number of keys in one BatchGetItem call.
const batchGetLimit = 100

// DynamoAPI is the subset of the DynamoDB client used by Store.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store is the DynamoDB EntityStore.
type Store struct {
	client   DynamoAPI
	config   Config
	registry *Registry
}

var _ EntityStore = (*Store)(nil)

// New creates a new Store instance.
func New(client DynamoAPI, config Config) *Store {
	config.Validate()
	return &Store{
		client: client,
		config: config,
	}
}

// NewWithRegistry creates a new Store instance that rejects keys outside of
// the registered kind hierarchy.
func NewWithRegistry(client DynamoAPI, config Config, registry *Registry) *Store {
	config.Validate()
	return &Store{
		client:   client,
		config:   config,
		registry: registry,
	}
}

// Registry returns the kind registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the validated store configuration.
func (s *Store) Config() Config {
	return s.config
}

// ClientOptions selects how NewClient authenticates and where it connects.
type ClientOptions struct {
	Region          string
	Profile         string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient builds a DynamoDB client. Static credentials win over a shared
// config profile; an Endpoint points the client at DynamoDB Local.
func NewClient(ctx context.Context, opts ClientOptions) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	} else if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// Get retrieves a document by key with a strongly consistent read.
func (s *Store) Get(ctx context.Context, key *Key) (*Document, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            keyOf(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return unmarshalDocument(result.Item)
}

// GetMulti retrieves documents in batches of 100. The result is aligned with
// keys; missing documents are nil.
func (s *Store) GetMulti(ctx context.Context, keys []*Key) ([]*Document, error) {
	found := make(map[string]*Document, len(keys))

	var pending []string
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == nil {
			continue
		}
		path := k.Path()
		if !seen[path] {
			seen[path] = true
			pending = append(pending, path)
		}
	}

	for start := 0; start < len(pending); start += batchGetLimit {
		end := min(start+batchGetLimit, len(pending))
		if err := s.batchGet(ctx, pending[start:end], found); err != nil {
			return nil, err
		}
	}

	out := make([]*Document, len(keys))
	for i, k := range keys {
		if k != nil {
			out[i] = found[k.Path()]
		}
	}
	return out, nil
}

func (s *Store) batchGet(ctx context.Context, paths []string, found map[string]*Document) error {
	keys := make([]map[string]types.AttributeValue, len(paths))
	for i, p := range paths {
		keys[i] = PK{attrPK: &types.AttributeValueMemberS{Value: p}}
	}
	request := map[string]types.KeysAndAttributes{
		s.config.Table: {Keys: keys, ConsistentRead: aws.Bool(true)},
	}

	for retry := 0; len(request) > 0; retry++ {
		if retry > 0 {
			if err := sleep(ctx, backoff(s.config.RetryBaseDelay, retry)); err != nil {
				return err
			}
		}
		result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return err
		}
		for _, raw := range result.Responses[s.config.Table] {
			doc, err := unmarshalDocument(raw)
			if err != nil {
				return err
			}
			found[doc.Key.Path()] = doc
		}
		request = result.UnprocessedKeys
	}
	return nil
}

// Put writes doc if the stored version still equals doc.Version. A document
// with Version 0 must not exist yet. On success doc.Version is incremented.
func (s *Store) Put(ctx context.Context, doc *Document) error {
	if doc == nil || doc.Key == nil {
		return ErrInvalidKey
	}
	if err := s.registry.Validate(doc.Key); err != nil {
		return err
	}

	item, err := marshalDocument(doc, doc.Version+1, s.config.NumShards)
	if err != nil {
		return err
	}
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	cond := expectVersion(doc.Version, names, values)

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.Table),
		Item:                item,
		ConditionExpression: aws.String(cond),
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return err
	}
	doc.Version++
	return nil
}

// AllocateChildID returns a random id for a new document under parent.
func (s *Store) AllocateChildID(ctx context.Context, parent *Key) (string, error) {
	if parent != nil {
		if err := s.registry.Validate(parent); err != nil {
			return "", err
		}
	}
	return uuid.NewString(), nil
}

// Query reads the kind index, fanning out across kind shards, and applies
// the filters, orders and limit of q. Index reads are eventually
// consistent.
func (s *Store) Query(ctx context.Context, q *Query) ([]*Document, error) {
	if q == nil || q.Kind == "" {
		return nil, fmt.Errorf("query without kind: %w", ErrInvalidKey)
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	filter, err := filterExpression(q.Filters, names, values)
	if err != nil {
		return nil, err
	}
	keyCond := "kind_pk = :kpk"
	if q.Ancestor != nil {
		keyCond += " AND begins_with(pk, :ancestor)"
		values[":ancestor"] = &types.AttributeValueMemberS{Value: q.Ancestor.Path()}
	}

	input := func(shardPK string) *dynamodb.QueryInput {
		vals := make(map[string]types.AttributeValue, len(values)+1)
		for k, v := range values {
			vals[k] = v
		}
		vals[":kpk"] = &types.AttributeValueMemberS{Value: shardPK}
		in := &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.Table),
			IndexName:                 aws.String(s.config.KindIndex),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeValues: vals,
		}
		if filter != "" {
			in.FilterExpression = aws.String(filter)
			in.ExpressionAttributeNames = names
		}
		return in
	}

	numShards := s.config.NumShards

	// Fast path for single shard (default)
	if numShards == 1 {
		docs, err := s.queryShard(ctx, input(shard.KindShardPK(q.Kind, 0)))
		if err != nil {
			return nil, err
		}
		return q.Apply(docs), nil
	}

	// Multi-shard fan-out
	var mu sync.Mutex
	var all []*Document
	var wg sync.WaitGroup
	errs := make(chan error, numShards)

	for shardNum := 0; shardNum < numShards; shardNum++ {
		wg.Add(1)
		go func(shardNum int) {
			defer wg.Done()

			docs, err := s.queryShard(ctx, input(shard.KindShardPK(q.Kind, shardNum)))
			if err != nil {
				errs <- fmt.Errorf("shard %02x: %w", shardNum, err)
				return
			}

			mu.Lock()
			all = append(all, docs...)
			mu.Unlock()
		}(shardNum)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return q.Apply(all), nil
}

func (s *Store) queryShard(ctx context.Context, input *dynamodb.QueryInput) ([]*Document, error) {
	var docs []*Document
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			doc, err := unmarshalDocument(raw)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// RunTransaction runs fn against a fresh transaction and commits its writes
// with TransactWriteItems, retrying on conflicts.
func (s *Store) RunTransaction(ctx context.Context, fn TxFunc) error {
	return RunWithRetry(ctx, s.config, func(ctx context.Context) error {
		tx := newDynamoTx(s)
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.commit(ctx)
	})
}
