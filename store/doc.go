// Package store provides a hierarchical document store with optimistic,
// retried transactions.
//
// Documents are addressed by [Key] values that form entity groups: a key may
// have a parent, and ancestor queries return every descendant of a key.
// Keys are handed to callers in the opaque URL-safe form of [Key.Encode].
//
// # Backends
//
// [Store] keeps every document in one DynamoDB table:
//
//	pk         S  key path, e.g. "Profile:u1/Conference:42"
//	kind       S  key kind
//	kind_pk    S  sharded kind bucket, partition key of the kind index
//	parent     S  parent key path (children only)
//	version    N  optimistic lock version
//	props      M  document properties
//	updated_at S  RFC 3339 timestamp of the last write
//
// The kind index (default "kind-index") is a GSI on kind_pk with sort key pk
// and ALL projection. Package memory provides an in-process backend with the
// same semantics.
//
// # Transactions
//
// [EntityStore.RunTransaction] runs a function against a [Tx] that records
// the version of every document it reads and buffers every write. Commit
// succeeds only if none of those documents changed in the meantime; on a
// conflict the function is run again, up to Config.MaxAttempts times:
//
//	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
//	    doc, err := tx.Get(ctx, key)
//	    if err != nil {
//	        return err
//	    }
//	    doc.Set("seatsAvailable", doc.Int("seatsAvailable")-1)
//	    tx.Put(doc)
//	    return nil
//	})
//
// # Configuration
//
// Use [DefaultConfig] for small datasets (NumShards=1, single queries).
// Increase NumShards to spread hot kinds across index partitions:
//
//	cfg := store.DefaultConfig()
//	cfg.NumShards = 16
//
// # Errors
//
//   - [ErrNotFound] - document doesn't exist
//   - [ErrInvalidKey] - key cannot be decoded
//   - [ErrInvalidHierarchy] - key violates the registered kind hierarchy
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrTransactionExhausted] - conflicts persisted across every attempt
//   - [ErrTooManyWrites] - transaction exceeds the commit size limit
package store
