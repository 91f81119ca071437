package modkit

import (
	"fmt"
	"sync"

	"github.com/modkit-go/modkit/internal/graph"
)

// instanceKey identifies a cache entry by owning module and token.
type instanceKey = graph.NodeKey

// entryState is the lifecycle of one cache entry. Constructed and failed are
// terminal: there is no invalidation or retry path.
type entryState int

const (
	stateUnderConstruction entryState = iota
	stateConstructed
	stateFailed
)

func (s entryState) String() string {
	switch s {
	case stateUnderConstruction:
		return "under-construction"
	case stateConstructed:
		return "constructed"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// cacheEntry tracks one (module, token) construction. done is closed exactly
// once, when the entry settles; waiters read state/value/err only after the
// close, which orders the writes before the reads. owner is the resolution
// chain constructing the entry, recorded for the waits-for check in await.
type cacheEntry struct {
	state entryState
	value any
	err   error
	done  chan struct{}
	owner *resolutionContext
}

// instanceCache is the singleton instance cache. Entries are created on
// first resolution and never evicted; only the container mutates it. waits
// records which entry each resolution chain is currently blocked on, so
// that chains waiting on each other's latches are detected instead of
// deadlocking.
type instanceCache struct {
	mu      sync.Mutex
	entries map[instanceKey]*cacheEntry
	waits   map[*resolutionContext]*cacheEntry
}

func newInstanceCache() *instanceCache {
	return &instanceCache{
		entries: make(map[instanceKey]*cacheEntry),
		waits:   make(map[*resolutionContext]*cacheEntry),
	}
}

// begin returns the entry for key and whether the caller owns construction.
// The first caller for a key gets a fresh under-construction entry and owner
// = true; everyone else gets the existing entry and must either read it (if
// settled) or wait on it through await.
func (c *instanceCache) begin(ctx *resolutionContext, key instanceKey) (entry *cacheEntry, owner bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		return existing, false
	}

	entry = &cacheEntry{
		state: stateUnderConstruction,
		done:  make(chan struct{}),
		owner: ctx,
	}
	c.entries[key] = entry
	return entry, true
}

// await blocks ctx until entry settles. Before blocking it walks the
// waits-for chain starting at entry's owner; if that chain leads back to
// ctx, the chains hold each other's latches and blocking would deadlock, so
// await returns false and ctx must fail its resolution instead. Walking and
// registering the wait happen under one lock, so of two chains closing a
// ring, exactly one registers and exactly one detects the ring.
func (c *instanceCache) await(ctx *resolutionContext, entry *cacheEntry) bool {
	c.mu.Lock()
	for cur := entry; cur != nil && cur.state == stateUnderConstruction; cur = c.waits[cur.owner] {
		if cur.owner == ctx {
			c.mu.Unlock()
			return false
		}
	}
	c.waits[ctx] = entry
	c.mu.Unlock()

	<-entry.done

	c.mu.Lock()
	delete(c.waits, ctx)
	c.mu.Unlock()
	return true
}

// complete settles key with a constructed value.
func (c *instanceCache) complete(key instanceKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[key]
	entry.value = value
	entry.state = stateConstructed
	close(entry.done)
}

// fail settles key in the terminal failed state.
func (c *instanceCache) fail(key instanceKey, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[key]
	entry.err = err
	entry.state = stateFailed
	close(entry.done)
}

// snapshot returns the current state of key without waiting. ok is false if
// no construction has started.
func (c *instanceCache) snapshot(key instanceKey) (state entryState, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return entry.state, true
}

// size returns the number of entries, settled or not.
func (c *instanceCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
