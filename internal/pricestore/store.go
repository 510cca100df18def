// Package pricestore holds the shared market price cache: the most recent
// normalized quote per (venue, market type, symbol). Writes are
// last-write-wins; connectors for different venues interleave freely.
//
// The map is sharded so that a read never blocks concurrent writers for
// unrelated keys. No network or persistence call ever happens under a shard
// lock.
package pricestore

import (
	"hash/fnv"
	"sync"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	quotes map[domain.QuoteKey]domain.Quote
}

// Store is a concurrency-safe last-write-wins quote cache.
type Store struct {
	shards [shardCount]*shard
}

// New creates an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{quotes: make(map[domain.QuoteKey]domain.Quote)}
	}
	return s
}

func (s *Store) shardFor(key domain.QuoteKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.Venue))
	h.Write([]byte{0})
	h.Write([]byte(key.MarketType))
	h.Write([]byte{0})
	h.Write([]byte(key.Symbol))
	return s.shards[h.Sum32()%shardCount]
}

// Put overwrites the slot for q's key with q.
func (s *Store) Put(q domain.Quote) {
	sh := s.shardFor(q.Key())
	sh.mu.Lock()
	sh.quotes[q.Key()] = q
	sh.mu.Unlock()
}

// Get returns the latest quote for key. The second return value is false
// when no quote has ever been stored for the key; a zero-value quote is
// never returned as present.
func (s *Store) Get(key domain.QuoteKey) (domain.Quote, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	q, ok := sh.quotes[key]
	sh.mu.RUnlock()
	return q, ok
}

// Symbols returns the distinct canonical symbols currently present across
// all venues and market types.
func (s *Store) Symbols() []string {
	seen := make(map[string]struct{})
	for _, sh := range s.shards {
		sh.mu.RLock()
		for key := range sh.quotes {
			seen[key.Symbol] = struct{}{}
		}
		sh.mu.RUnlock()
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	return symbols
}

// Compile-time interface check.
var _ domain.QuoteStore = (*Store)(nil)
