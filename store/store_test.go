package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/conference/store"
	"github.com/jacentio/conference/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, cfg store.Config) store.EntityStore {
		return store.New(newFakeDynamo(), cfg)
	})
}

func TestStore_Sharded(t *testing.T) {
	storetest.Run(t, func(t *testing.T, cfg store.Config) store.EntityStore {
		cfg.NumShards = 8
		return store.New(newFakeDynamo(), cfg)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()

	assert.Equal(t, "conference_entities", cfg.Table)
	assert.Equal(t, "kind-index", cfg.KindIndex)
	assert.Equal(t, 1, cfg.NumShards)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.RetryBaseDelay)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name       string
		in         store.Config
		wantShards int
		wantTries  int
	}{
		{"zero values", store.Config{}, 1, 5},
		{"negative shards", store.Config{NumShards: -3, MaxAttempts: 2}, 1, 2},
		{"too many shards", store.Config{NumShards: 1000, MaxAttempts: 9}, 256, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			cfg.Validate()
			assert.Equal(t, tt.wantShards, cfg.NumShards)
			assert.Equal(t, tt.wantTries, cfg.MaxAttempts)
			assert.Equal(t, "conference_entities", cfg.Table)
			assert.Equal(t, "kind-index", cfg.KindIndex)
		})
	}
}

func TestStore_ItemLayout(t *testing.T) {
	fake := newFakeDynamo()
	s := store.New(fake, store.DefaultConfig())
	ctx := context.Background()

	key := store.NewKey("Conference", "c1", store.NewKey("Profile", "u1", nil))
	doc := store.NewDocument(key)
	doc.Set("name", "GopherCon")
	doc.Set("maxAttendees", 100)
	require.NoError(t, s.Put(ctx, doc))

	item := fake.items["Profile:u1/Conference:c1"]
	require.NotNil(t, item)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Conference"}, item["kind"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Conference#00"}, item["kind_pk"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Profile:u1"}, item["parent"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, item["version"])

	props := item["props"].(*types.AttributeValueMemberM).Value
	assert.Equal(t, &types.AttributeValueMemberS{Value: "GopherCon"}, props["name"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "100"}, props["maxAttendees"])
}

func TestStore_GetMultiBatchesAndRetriesUnprocessed(t *testing.T) {
	fake := newFakeDynamo()
	cfg := store.DefaultConfig()
	cfg.RetryBaseDelay = 0
	s := store.New(fake, cfg)
	ctx := context.Background()

	var keys []*store.Key
	for i := 0; i < 150; i++ {
		key := store.NewKey("Profile", fmt.Sprintf("u%03d", i), nil)
		keys = append(keys, key)
		require.NoError(t, s.Put(ctx, store.NewDocument(key)))
	}

	fake.throttleBatch = true
	docs, err := s.GetMulti(ctx, keys)
	require.NoError(t, err)
	require.Len(t, docs, 150)
	for i, d := range docs {
		require.NotNil(t, d, "document %d", i)
		assert.Equal(t, keys[i].ID, d.Key.ID)
	}
	// Two chunks plus one retry of the throttled chunk.
	assert.Equal(t, 3, fake.batchCalls)
}

func TestStore_QueryFansOutAcrossShards(t *testing.T) {
	fake := newFakeDynamo()
	cfg := store.DefaultConfig()
	cfg.NumShards = 4
	s := store.New(fake, cfg)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		doc := store.NewDocument(store.NewKey("Profile", fmt.Sprintf("u%02d", i), nil))
		require.NoError(t, s.Put(ctx, doc))
	}

	docs, err := s.Query(ctx, store.NewQuery("Profile"))
	require.NoError(t, err)
	assert.Len(t, docs, 20)
	assert.Len(t, fake.queries, 4)
	for _, q := range fake.queries {
		assert.Equal(t, "kind-index", *q.IndexName)
	}
}

func TestStore_QueryPushesDownFilters(t *testing.T) {
	fake := newFakeDynamo()
	s := store.New(fake, store.DefaultConfig())
	ctx := context.Background()

	q := store.NewQuery("Conference").
		WithAncestor(store.NewKey("Profile", "u1", nil)).
		Where("city", store.OpEqual, "London").
		Where("month", store.OpNotEqual, 6)
	_, err := s.Query(ctx, q)
	require.NoError(t, err)

	require.Len(t, fake.queries, 1)
	in := fake.queries[0]
	assert.Equal(t, "kind_pk = :kpk AND begins_with(pk, :ancestor)", *in.KeyConditionExpression)
	assert.Equal(t,
		"(attribute_type(#props.#f0, :listType) OR #props.#f0 = :f0) AND "+
			"(attribute_type(#props.#f1, :listType) OR #props.#f1 <> :f1)",
		*in.FilterExpression)
	assert.Equal(t, "city", in.ExpressionAttributeNames["#f0"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "6"}, in.ExpressionAttributeValues[":f1"])
}

func TestStore_TransactionConditionChecksReadOnlyDocuments(t *testing.T) {
	fake := newFakeDynamo()
	s := store.New(fake, store.DefaultConfig())
	ctx := context.Background()

	conf := store.NewKey("Conference", "c1", store.NewKey("Profile", "owner", nil))
	require.NoError(t, s.Put(ctx, store.NewDocument(conf)))

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Get(ctx, conf); err != nil {
			return err
		}
		tx.Put(store.NewDocument(store.NewKey("Profile", "u1", nil)))
		return nil
	})
	require.NoError(t, err)

	require.Len(t, fake.lastTx.TransactItems, 2)
	assert.NotNil(t, fake.lastTx.TransactItems[0].Put)
	check := fake.lastTx.TransactItems[1].ConditionCheck
	require.NotNil(t, check)
	assert.Equal(t, "#version = :expected", *check.ConditionExpression)
}

func TestStore_ReadOnlyTransactionDoesNotCommit(t *testing.T) {
	fake := newFakeDynamo()
	s := store.New(fake, store.DefaultConfig())
	ctx := context.Background()

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Get(ctx, store.NewKey("Profile", "u1", nil))
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fake.txCalls)
}

func TestStore_TooManyWrites(t *testing.T) {
	s := store.New(newFakeDynamo(), store.DefaultConfig())
	ctx := context.Background()

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		for i := 0; i < 101; i++ {
			tx.Put(store.NewDocument(store.NewKey("Profile", fmt.Sprintf("u%d", i), nil)))
		}
		return nil
	})
	require.ErrorIs(t, err, store.ErrTooManyWrites)
}

func TestStore_RegistryValidation(t *testing.T) {
	r := store.NewRegistry()
	r.RegisterRoot("Profile")
	r.Register(store.Relationship{ParentKind: "Profile", ChildKind: "Conference"})
	s := store.NewWithRegistry(newFakeDynamo(), store.DefaultConfig(), r)
	ctx := context.Background()

	err := s.Put(ctx, store.NewDocument(store.NewKey("Conference", "c1", nil)))
	require.ErrorIs(t, err, store.ErrInvalidHierarchy)

	_, err = s.AllocateChildID(ctx, store.NewKey("Conference", "c1", nil))
	require.ErrorIs(t, err, store.ErrInvalidHierarchy)

	id, err := s.AllocateChildID(ctx, store.NewKey("Profile", "u1", nil))
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Same(t, r, s.Registry())
}
