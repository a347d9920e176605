package main

import (
	"container/list"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const shardCount = 16

// storeShard is one partition of the keyed map. Entries are stored by
// value and replaced wholesale on every metadata update (bump
// frequency, move LRU position) rather than mutated in place, so a
// shard needs no lock beyond sync.Map's own.
type storeShard struct {
	entries sync.Map // key string -> CacheEntry
}

func shardFor(shards []*storeShard, key string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return shards[h.Sum32()%uint32(len(shards))]
}

// Store is the process-wide keyed cache: a sharded map for the keyed
// data, one global LRU queue under its own mutex, and a bounded
// capacity enforced by hybrid eviction on overflowing SET. Callers own
// an explicit *Store handle; there is no package-level singleton.
type Store struct {
	shards   []*storeShard
	capacity int

	lruMu    sync.Mutex
	lruList  *list.List               // front = most recently touched
	lruIndex map[string]*list.Element // key -> node in lruList

	count      atomic.Int64
	startTime  time.Time
	stats      *ServerStats
	defaultTTL time.Duration
}

// NewStore builds an empty store with the given capacity. capacity
// must be positive; the caller (config validation) is responsible for
// rejecting non-positive values before this is called.
func NewStore(capacity int, stats *ServerStats) *Store {
	shards := make([]*storeShard, shardCount)
	for i := range shards {
		shards[i] = &storeShard{}
	}
	return &Store{
		shards:    shards,
		capacity:  capacity,
		lruList:   list.New(),
		lruIndex:  make(map[string]*list.Element),
		startTime: time.Now(),
		stats:     stats,
	}
}

// WithDefaultTTL sets the expiry SET falls back to when a command
// omits EX/PX entirely (config.json/env's advisory default_ttl field).
// An explicit EX/PX on the command always wins.
func (s *Store) WithDefaultTTL(ttl time.Duration) *Store {
	s.defaultTTL = ttl
	return s
}

// StoreGetResult is the outcome of Get: a cloned value on hit, or a
// sentinel signalling absence/expiry. Expired additionally means the
// entry has already been removed from the store as a side effect.
type StoreGetResult struct {
	Value StoredValue
	Err   error // nil, ErrKeyNotFound, or ErrKeyExpired
}

// Get looks up key. On a live hit it bumps frequency, refreshes
// last-accessed, moves the key to the front of the LRU queue, and
// returns a clone of the value. A logically expired entry is removed
// eagerly and reported as ErrKeyExpired; a missing key is
// ErrKeyNotFound.
func (s *Store) Get(key string) StoreGetResult {
	shard := shardFor(s.shards, key)

	raw, ok := shard.entries.Load(key)
	if !ok {
		return StoreGetResult{Err: wrapStoreErr(ErrKeyNotFound, key)}
	}
	entry := raw.(CacheEntry)

	now := time.Now()
	if isExpired(entry, now) {
		s.removeKey(shard, key)
		if s.stats != nil {
			s.stats.ExpiredReads.Inc()
		}
		return StoreGetResult{Err: wrapStoreErr(ErrKeyExpired, key)}
	}

	entry.Frequency++
	entry.LastAccessed = now
	shard.entries.Store(key, entry)
	s.touchLRU(key)

	return StoreGetResult{Value: cloneStoredValue(entry.Value)}
}

// Set inserts or overwrites key. If the store is at capacity and key is
// new, exactly one eviction pass runs first so the store never grows
// past capacity. The previous value, if any existed (and was live), is
// returned.
func (s *Store) Set(key string, value StoredValue, opts SetOptions) (prev StoredValue, hadPrev bool) {
	shard := shardFor(s.shards, key)

	_, existed := shard.entries.Load(key)
	if !existed && s.count.Load() >= int64(s.capacity) {
		s.evictOne()
	}

	now := time.Now()
	entry := CacheEntry{
		Value:        value,
		Frequency:    1,
		LastAccessed: now,
	}
	switch {
	case opts.HasExpiry:
		entry.HasTTL = true
		entry.ExpiresAt = now.Add(opts.ExpireIn)
	case s.defaultTTL > 0:
		entry.HasTTL = true
		entry.ExpiresAt = now.Add(s.defaultTTL)
	}

	old, loaded := shard.entries.Swap(key, entry)
	s.touchLRU(key)
	if !loaded {
		s.count.Inc()
	}

	if loaded {
		oldEntry := old.(CacheEntry)
		if !isExpired(oldEntry, now) {
			return cloneStoredValue(oldEntry.Value), true
		}
	}
	return StoredValue{}, false
}

// Delete removes each of keys from the store, returning how many
// existed beforehand.
func (s *Store) Delete(keys []string) int {
	removed := 0
	for _, key := range keys {
		shard := shardFor(s.shards, key)
		if _, ok := shard.entries.Load(key); ok {
			s.removeKey(shard, key)
			removed++
		}
	}
	return removed
}

// IsExpired reports whether key is logically absent (now >= ttl). It
// does not mutate the store.
func (s *Store) IsExpired(key string) (bool, error) {
	shard := shardFor(s.shards, key)
	raw, ok := shard.entries.Load(key)
	if !ok {
		return false, wrapStoreErr(ErrKeyNotFound, key)
	}
	return isExpired(raw.(CacheEntry), time.Now()), nil
}

// Invalidate sweeps every shard and removes entries whose TTL has
// passed. Intended to be called periodically by a background loop or
// on idle; it is safe to call concurrently with normal traffic.
func (s *Store) Invalidate() int {
	now := time.Now()
	removed := 0

	for _, shard := range s.shards {
		var expiredKeys []string
		shard.entries.Range(func(k, v any) bool {
			if isExpired(v.(CacheEntry), now) {
				expiredKeys = append(expiredKeys, k.(string))
			}
			return true
		})
		for _, key := range expiredKeys {
			s.removeKey(shard, key)
			removed++
		}
	}
	return removed
}

// Len reports the current number of live entries.
func (s *Store) Len() int {
	return int(s.count.Load())
}

func isExpired(entry CacheEntry, now time.Time) bool {
	return entry.HasTTL && !now.Before(entry.ExpiresAt)
}

func (s *Store) removeKey(shard *storeShard, key string) {
	if _, ok := shard.entries.LoadAndDelete(key); ok {
		s.count.Dec()
	}
	s.lruMu.Lock()
	if elem, ok := s.lruIndex[key]; ok {
		s.lruList.Remove(elem)
		delete(s.lruIndex, key)
	}
	s.lruMu.Unlock()
}

// touchLRU moves key to the front of the queue, inserting it if it is
// new. The whole list plus index is protected by one mutex, so every
// live key has exactly one queue node at a time.
func (s *Store) touchLRU(key string) {
	s.lruMu.Lock()
	defer s.lruMu.Unlock()

	if elem, ok := s.lruIndex[key]; ok {
		s.lruList.MoveToFront(elem)
		return
	}
	s.lruIndex[key] = s.lruList.PushFront(key)
}

// evictOne runs the hybrid LRU+LFU+TTL-weighted eviction pass: score
// every queued key, remove the single highest-scoring one. Holding
// lruMu for the whole traversal is deliberate: eviction is rare (at
// most once per overflowing Set) and the queue is bounded by capacity.
func (s *Store) evictOne() {
	s.lruMu.Lock()
	if s.lruList.Len() == 0 {
		s.lruMu.Unlock()
		return
	}

	now := time.Now()
	var worstKey string
	var worstElem *list.Element
	worstScore := math.Inf(-1)

	// Walk back-to-front (stalest queue position first) with a strict
	// ">" comparison so that on a tied score the staler (earlier-seen)
	// key keeps the win: "more recently inserted loses last" means the
	// more-recently-touched key of a tied pair survives.
	for elem := s.lruList.Back(); elem != nil; elem = elem.Prev() {
		key := elem.Value.(string)
		shard := shardFor(s.shards, key)
		raw, ok := shard.entries.Load(key)
		if !ok {
			continue
		}
		score := hybridScore(raw.(CacheEntry), now)
		if score > worstScore {
			worstScore = score
			worstKey = key
			worstElem = elem
		}
	}

	if worstElem == nil {
		s.lruMu.Unlock()
		return
	}
	s.lruList.Remove(worstElem)
	delete(s.lruIndex, worstKey)
	s.lruMu.Unlock()

	shard := shardFor(s.shards, worstKey)
	if _, ok := shard.entries.LoadAndDelete(worstKey); ok {
		s.count.Dec()
		if s.stats != nil {
			s.stats.Evictions.Inc()
		}
	}
}

// hybridScore computes S = W_lru + W_lfu + W_ttl for entry at time
// now. Larger is more evictable; an already-expired entry scores +Inf
// so it always wins.
func hybridScore(entry CacheEntry, now time.Time) float64 {
	wLRU := float64(now.Sub(entry.LastAccessed).Milliseconds())
	wLFU := 1.0 / (float64(entry.Frequency) + 1.0)

	var wTTL float64
	if entry.HasTTL {
		if !now.Before(entry.ExpiresAt) {
			return math.Inf(1)
		}
		remainingMs := float64(entry.ExpiresAt.Sub(now).Milliseconds())
		if remainingMs <= 0 {
			remainingMs = 1
		}
		wTTL = 1.0 / remainingMs
	}

	return wLRU + wLFU + wTTL
}
