package savedjobs

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Set is a point-in-time snapshot of saved job ids.
type Set map[int]struct{}

func NewSet(ids ...int) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in ascending order.
func (s Set) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Local is one visitor's saved set. Reads never fail: an unavailable medium
// reads as empty. Writes return an error when the change was not kept.
type Local interface {
	IsSaved(id int) bool
	Toggle(id int) error
	// Put makes membership of id equal saved. Repeating it changes nothing.
	Put(id int, saved bool) error
	Saved() Set
}

// Store keeps saved sets for many visitors.
type Store interface {
	Saved(ctx context.Context, visitorID string) (Set, error)
	IsSaved(ctx context.Context, visitorID string, id int) (bool, error)
	// Toggle flips membership and returns the new state.
	Toggle(ctx context.Context, visitorID string, id int) (bool, error)
	Put(ctx context.Context, visitorID string, id int, saved bool) error
}

// Bind exposes a visitor's slice of s as a Local.
func Bind(ctx context.Context, s Store, visitorID string, logger zerolog.Logger) Local {
	return &bound{ctx: ctx, store: s, visitorID: visitorID, logger: logger}
}

type bound struct {
	ctx       context.Context
	store     Store
	visitorID string
	logger    zerolog.Logger
}

func (b *bound) IsSaved(id int) bool {
	ok, err := b.store.IsSaved(b.ctx, b.visitorID, id)
	if err != nil {
		b.logger.Warn().Err(err).Int("job_id", id).Msg("saved store unavailable")
		return false
	}
	return ok
}

func (b *bound) Toggle(id int) error {
	if _, err := b.store.Toggle(b.ctx, b.visitorID, id); err != nil {
		b.logger.Warn().Err(err).Int("job_id", id).Msg("unable to toggle saved job")
		return err
	}
	return nil
}

func (b *bound) Put(id int, saved bool) error {
	if err := b.store.Put(b.ctx, b.visitorID, id, saved); err != nil {
		b.logger.Warn().Err(err).Int("job_id", id).Bool("saved", saved).Msg("unable to update saved job")
		return err
	}
	return nil
}

func (b *bound) Saved() Set {
	s, err := b.store.Saved(b.ctx, b.visitorID)
	if err != nil {
		b.logger.Warn().Err(err).Msg("saved store unavailable")
		return Set{}
	}
	return s
}

// MemoryStore keeps saved sets in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]Set
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]Set)}
}

func (m *MemoryStore) Saved(_ context.Context, visitorID string) (Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[visitorID].clone(), nil
}

func (m *MemoryStore) IsSaved(_ context.Context, visitorID string, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[visitorID].Has(id), nil
}

func (m *MemoryStore) Toggle(_ context.Context, visitorID string, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[visitorID]
	if !ok {
		s = Set{}
		m.sets[visitorID] = s
	}
	if s.Has(id) {
		delete(s, id)
		return false, nil
	}
	s[id] = struct{}{}
	return true, nil
}

func (m *MemoryStore) Put(_ context.Context, visitorID string, id int, saved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[visitorID]
	if !ok {
		s = Set{}
		m.sets[visitorID] = s
	}
	if saved {
		s[id] = struct{}{}
	} else {
		delete(s, id)
	}
	return nil
}
