// Package storetest provides a behavioural test suite shared by every
// store.EntityStore backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/conference/store"
)

// Factory returns an empty store configured with cfg.
type Factory func(t *testing.T, cfg store.Config) store.EntityStore

// Run runs the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newStore) })
	t.Run("PutVersionConflict", func(t *testing.T) { testPutVersionConflict(t, newStore) })
	t.Run("GetMulti", func(t *testing.T) { testGetMulti(t, newStore) })
	t.Run("AllocateChildID", func(t *testing.T) { testAllocateChildID(t, newStore) })
	t.Run("QueryAncestor", func(t *testing.T) { testQueryAncestor(t, newStore) })
	t.Run("QueryFiltersAndOrder", func(t *testing.T) { testQueryFiltersAndOrder(t, newStore) })
	t.Run("TransactionCommit", func(t *testing.T) { testTransactionCommit(t, newStore) })
	t.Run("TransactionReadYourWrites", func(t *testing.T) { testTransactionReadYourWrites(t, newStore) })
	t.Run("TransactionBodyError", func(t *testing.T) { testTransactionBodyError(t, newStore) })
	t.Run("TransactionRetriesOnConflict", func(t *testing.T) { testTransactionRetries(t, newStore) })
	t.Run("TransactionReadSetConflict", func(t *testing.T) { testTransactionReadSetConflict(t, newStore) })
	t.Run("TransactionExhausted", func(t *testing.T) { testTransactionExhausted(t, newStore) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore) })
}

func config() store.Config {
	cfg := store.DefaultConfig()
	cfg.RetryBaseDelay = 0
	return cfg
}

func profileKey(id string) *store.Key { return store.NewKey("Profile", id, nil) }

func conferenceKey(owner, id string) *store.Key {
	return store.NewKey("Conference", id, profileKey(owner))
}

func putConference(t *testing.T, s store.EntityStore, owner, id, city string, seats int64, topics ...string) *store.Document {
	t.Helper()
	doc := store.NewDocument(conferenceKey(owner, id))
	doc.Set("name", id)
	doc.Set("city", city)
	doc.Set("seatsAvailable", seats)
	doc.Set("topics", topics)
	require.NoError(t, s.Put(context.Background(), doc))
	return doc
}

func testPutGet(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())

	_, err := s.Get(ctx, profileKey("u1"))
	require.ErrorIs(t, err, store.ErrNotFound)

	doc := store.NewDocument(profileKey("u1"))
	doc.Set("displayName", "Ada")
	doc.Set("conferenceKeysToAttend", []string{"a", "b"})
	doc.Set("count", 3)
	require.NoError(t, s.Put(ctx, doc))
	assert.Equal(t, int64(1), doc.Version)

	got, err := s.Get(ctx, profileKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "Ada", got.String("displayName"))
	assert.Equal(t, []string{"a", "b"}, got.Strings("conferenceKeysToAttend"))
	assert.Equal(t, int64(3), got.Int("count"))
	assert.True(t, got.Key.Equal(profileKey("u1")))
}

func testPutVersionConflict(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())

	require.NoError(t, s.Put(ctx, store.NewDocument(profileKey("u1"))))

	// A second create of the same key is a conflict.
	err := s.Put(ctx, store.NewDocument(profileKey("u1")))
	require.ErrorIs(t, err, store.ErrConcurrentModification)

	first, err := s.Get(ctx, profileKey("u1"))
	require.NoError(t, err)
	second, err := s.Get(ctx, profileKey("u1"))
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, first))
	err = s.Put(ctx, second)
	require.ErrorIs(t, err, store.ErrConcurrentModification)
}

func testGetMulti(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())

	require.NoError(t, s.Put(ctx, store.NewDocument(profileKey("a"))))
	require.NoError(t, s.Put(ctx, store.NewDocument(profileKey("c"))))

	docs, err := s.GetMulti(ctx, []*store.Key{profileKey("a"), profileKey("b"), profileKey("c"), profileKey("a")})
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, "a", docs[0].Key.ID)
	assert.Nil(t, docs[1])
	assert.Equal(t, "c", docs[2].Key.ID)
	assert.Equal(t, "a", docs[3].Key.ID)
}

func testAllocateChildID(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := s.AllocateChildID(ctx, profileKey("u1"))
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "id %s allocated twice", id)
		seen[id] = true
	}
}

func testQueryAncestor(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())

	putConference(t, s, "u1", "c1", "London", 1)
	putConference(t, s, "u1", "c2", "Paris", 1)
	putConference(t, s, "u10", "c3", "Rome", 1)

	docs, err := s.Query(ctx, store.NewQuery("Conference").WithAncestor(profileKey("u1")).OrderBy("name"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c1", docs[0].Key.ID)
	assert.Equal(t, "c2", docs[1].Key.ID)

	docs, err = s.Query(ctx, store.NewQuery("Profile"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testQueryFiltersAndOrder(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())

	putConference(t, s, "u1", "c1", "London", 10, "Go", "Cloud")
	putConference(t, s, "u1", "c2", "London", 3, "Web")
	putConference(t, s, "u2", "c3", "London", 0, "Go")
	putConference(t, s, "u2", "c4", "Paris", 2, "Go")

	q := store.NewQuery("Conference").
		Where("city", store.OpEqual, "London").
		Where("seatsAvailable", store.OpGreaterThan, 0)
	q.Orders = []store.Order{{Property: "seatsAvailable"}, {Property: "name"}}
	docs, err := s.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c2", docs[0].Key.ID)
	assert.Equal(t, "c1", docs[1].Key.ID)

	docs, err = s.Query(ctx, store.NewQuery("Conference").Where("topics", store.OpEqual, "Go").OrderBy("name"))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c1", docs[0].Key.ID)

	docs, err = s.Query(ctx, store.NewQuery("Conference").Where("topics", store.OpNotEqual, "Go"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c2", docs[0].Key.ID)

	q = store.NewQuery("Conference").OrderBy("name")
	q.Limit = 3
	docs, err = s.Query(ctx, q)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func testTransactionCommit(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())
	putConference(t, s, "u1", "c1", "London", 5)

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		conf, err := tx.Get(ctx, conferenceKey("u1", "c1"))
		if err != nil {
			return err
		}
		_, err = tx.Get(ctx, profileKey("u2"))
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		prof := store.NewDocument(profileKey("u2"))
		prof.Set("conferenceKeysToAttend", []string{conf.Key.Encode()})
		conf.Set("seatsAvailable", conf.Int("seatsAvailable")-1)
		tx.Put(prof)
		tx.Put(conf)
		return nil
	})
	require.NoError(t, err)

	conf, err := s.Get(ctx, conferenceKey("u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), conf.Int("seatsAvailable"))
	assert.Equal(t, int64(2), conf.Version)

	prof, err := s.Get(ctx, profileKey("u2"))
	require.NoError(t, err)
	assert.Equal(t, []string{conferenceKey("u1", "c1").Encode()}, prof.Strings("conferenceKeysToAttend"))
}

func testTransactionReadYourWrites(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		doc := store.NewDocument(profileKey("u1"))
		doc.Set("displayName", "first")
		tx.Put(doc)

		got, err := tx.Get(ctx, profileKey("u1"))
		if err != nil {
			return err
		}
		assert.Equal(t, "first", got.String("displayName"))
		got.Set("displayName", "second")
		tx.Put(got)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, profileKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, "second", got.String("displayName"))
	assert.Equal(t, int64(1), got.Version)
}

func testTransactionBodyError(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())
	boom := errors.New("boom")

	calls := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		calls++
		tx.Put(store.NewDocument(profileKey("u1")))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	_, err = s.Get(ctx, profileKey("u1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTransactionRetries(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())
	putConference(t, s, "u1", "c1", "London", 5)

	calls := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		calls++
		conf, err := tx.Get(ctx, conferenceKey("u1", "c1"))
		if err != nil {
			return err
		}
		if calls == 1 {
			// A competing writer commits between our read and our commit.
			other, err := s.Get(ctx, conferenceKey("u1", "c1"))
			require.NoError(t, err)
			other.Set("seatsAvailable", other.Int("seatsAvailable")-1)
			require.NoError(t, s.Put(ctx, other))
		}
		conf.Set("seatsAvailable", conf.Int("seatsAvailable")-1)
		tx.Put(conf)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	conf, err := s.Get(ctx, conferenceKey("u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), conf.Int("seatsAvailable"))
}

func testTransactionReadSetConflict(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, config())
	putConference(t, s, "u1", "c1", "London", 5)

	calls := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		calls++
		if _, err := tx.Get(ctx, conferenceKey("u1", "c1")); err != nil {
			return err
		}
		if calls == 1 {
			other, err := s.Get(ctx, conferenceKey("u1", "c1"))
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, other))
		}
		// Only the profile is written; the conference was merely read.
		tx.Put(store.NewDocument(profileKey("u2")))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func testTransactionExhausted(t *testing.T, newStore Factory) {
	ctx := context.Background()
	cfg := config()
	cfg.MaxAttempts = 3
	s := newStore(t, cfg)
	putConference(t, s, "u1", "c1", "London", 5)

	calls := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		calls++
		conf, err := tx.Get(ctx, conferenceKey("u1", "c1"))
		if err != nil {
			return err
		}
		other, err := s.Get(ctx, conferenceKey("u1", "c1"))
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, other))
		tx.Put(conf)
		return nil
	})
	require.ErrorIs(t, err, store.ErrTransactionExhausted)
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
	assert.Equal(t, 3, calls)
}

func testConcurrentIncrements(t *testing.T, newStore Factory) {
	ctx := context.Background()
	cfg := config()
	cfg.MaxAttempts = 50
	s := newStore(t, cfg)
	putConference(t, s, "u1", "c1", "London", 0)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
				conf, err := tx.Get(ctx, conferenceKey("u1", "c1"))
				if err != nil {
					return err
				}
				conf.Set("seatsAvailable", conf.Int("seatsAvailable")+1)
				tx.Put(conf)
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	conf, err := s.Get(ctx, conferenceKey("u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, int64(workers), conf.Int("seatsAvailable"))
}
