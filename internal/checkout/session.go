package checkout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Marker is the transient session-scoped record that correlates a hosted
// redirect return with the attempt that issued it. Markers are the only
// state this subsystem keeps outside the process.
type Marker struct {
	AttemptID      string `json:"attempt_id"`
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	CreatedAt      int64  `json:"created_at"`
}

// MarkerStore holds redirect correlation markers and the per-order verify
// guard. Take is consume-once: a second call for the same key misses.
type MarkerStore interface {
	Put(ctx context.Context, m *Marker) error
	Take(ctx context.Context, gatewayOrderID string) (*Marker, bool, error)
	// FirstVerify reports whether this is the first verification claim for
	// the order. Later claims must not trigger another backend call.
	FirstVerify(ctx context.Context, orderID string) (bool, error)
}

type redisMarkerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *redisMarkerStore) Put(ctx context.Context, m *Marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "checkout:marker:"+m.GatewayOrderID, data, s.ttl).Err()
}

func (s *redisMarkerStore) Take(ctx context.Context, gatewayOrderID string) (*Marker, bool, error) {
	data, err := s.client.GetDel(ctx, "checkout:marker:"+gatewayOrderID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, err
	}
	return &m, true, nil
}

func (s *redisMarkerStore) FirstVerify(ctx context.Context, orderID string) (bool, error) {
	return s.client.SetNX(ctx, "checkout:verified:"+orderID, "1", s.ttl).Result()
}

type memoryMarkerStore struct {
	mu       sync.Mutex
	markers  map[string]memoryEntry
	verified map[string]time.Time
	ttl      time.Duration
	nextGC   time.Time
}

type memoryEntry struct {
	marker  Marker
	expires time.Time
}

func newMemoryMarkerStore(ttl time.Duration) *memoryMarkerStore {
	return &memoryMarkerStore{
		markers:  make(map[string]memoryEntry),
		verified: make(map[string]time.Time),
		ttl:      ttl,
		nextGC:   time.Now().Add(ttl),
	}
}

func (s *memoryMarkerStore) Put(_ context.Context, m *Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[m.GatewayOrderID] = memoryEntry{marker: *m, expires: time.Now().Add(s.ttl)}
	s.gcLocked()
	return nil
}

func (s *memoryMarkerStore) Take(_ context.Context, gatewayOrderID string) (*Marker, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.markers[gatewayOrderID]
	if !ok || entry.expires.Before(time.Now()) {
		delete(s.markers, gatewayOrderID)
		return nil, false, nil
	}
	delete(s.markers, gatewayOrderID)
	m := entry.marker
	return &m, true, nil
}

func (s *memoryMarkerStore) FirstVerify(_ context.Context, orderID string) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.verified[orderID]; ok && exp.After(now) {
		return false, nil
	}
	s.verified[orderID] = now.Add(s.ttl)
	s.gcLocked()
	return true, nil
}

func (s *memoryMarkerStore) gcLocked() {
	now := time.Now()
	if now.Before(s.nextGC) {
		return
	}
	for k, e := range s.markers {
		if e.expires.Before(now) {
			delete(s.markers, k)
		}
	}
	for k, exp := range s.verified {
		if exp.Before(now) {
			delete(s.verified, k)
		}
	}
	s.nextGC = now.Add(s.ttl)
}

// NewMarkerStore builds a Redis-backed store and falls back to in-memory
// when Redis is unreachable. The returned error is advisory: the store is
// always usable.
func NewMarkerStore(addr, pass string, db int, ttl time.Duration) (MarkerStore, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if addr == "" {
		return newMemoryMarkerStore(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryMarkerStore(ttl), err
	}

	return &redisMarkerStore{client: client, ttl: ttl}, nil
}
