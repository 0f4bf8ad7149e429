package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "biblio/pkg/domain-errors"
)

const numTxShards = 128

// defaultTxTimeout bounds a transaction so a stuck caller cannot hold a shard
// forever.
const defaultTxTimeout = 5 * time.Second

// MemoryTx serializes compound mutations against the in-memory store using
// sharded mutexes. Operations lock the shards of every entity they touch, so
// two loan opens on the same item serialize while unrelated items proceed in
// parallel, and a delete cannot interleave with a loan open against the same
// entity.
type MemoryTx struct {
	shards  [numTxShards]sync.Mutex
	store   Store
	timeout time.Duration
}

// NewMemoryTx wraps an in-memory store with a sharded transactional boundary.
func NewMemoryTx(s Store) *MemoryTx {
	return &MemoryTx{store: s}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(s Store) error, keys ...uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for _, shard := range t.selectShards(keys) {
		t.shards[shard].Lock()
		defer t.shards[shard].Unlock()
	}

	// Check again after acquiring the locks.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}

// selectShards maps entity ids to a deduplicated, ascending shard list.
// Locking in ascending order keeps multi-key transactions deadlock-free.
func (t *MemoryTx) selectShards(keys []uuid.UUID) []int {
	if len(keys) == 0 {
		return []int{0}
	}
	seen := make(map[int]struct{}, len(keys))
	shards := make([]int, 0, len(keys))
	for _, key := range keys {
		shard := int(hashKey(key.String()) % numTxShards)
		if _, ok := seen[shard]; ok {
			continue
		}
		seen[shard] = struct{}{}
		shards = append(shards, shard)
	}
	sort.Ints(shards)
	return shards
}

// hashKey uses FNV-1a for even shard distribution.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
