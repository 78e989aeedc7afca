// Package shard provides shard key generation for the kind index.
package shard

import (
	"fmt"
	"hash/fnv"
)

// KindPK computes the sharded kind-index partition key for the document at
// path. With numShards=1, every document of a kind goes to shard "00".
// With numShards>1, documents are distributed across shards by path hash.
func KindPK(kind, path string, numShards int) string {
	if numShards <= 1 {
		return KindShardPK(kind, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(path))
	return KindShardPK(kind, int(h.Sum32()%uint32(numShards)))
}

// KindShardPK returns the partition key of one shard of kind. Queries over a
// kind fan out across KindShardPK(kind, 0..numShards-1).
func KindShardPK(kind string, n int) string {
	return fmt.Sprintf("%s#%02x", kind, n)
}
