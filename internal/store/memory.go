package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

// MemoryStore keeps reports in process. With a snapshot path every write is
// persisted to that JSON file, which makes it usable for offline exports and
// small deployments without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]model.Report
	order   []string // insertion order
	path    string

	now   func() time.Time
	newID func() string
	bc    *Broadcaster
}

// NewMemoryStore returns an empty, non-persistent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]model.Report),
		now:     time.Now,
		newID:   uuid.NewString,
		bc:      NewBroadcaster(),
	}
}

// NewMemoryStoreFrom returns a store preloaded with reports. Reports keep
// their IDs; missing IDs are generated.
func NewMemoryStoreFrom(reports []model.Report) *MemoryStore {
	s := NewMemoryStore()
	// Input is newest first; insert oldest first so order tracks age.
	for i := len(reports) - 1; i >= 0; i-- {
		r := reports[i]
		if r.ID == "" {
			r.ID = s.newID()
		}
		if r.Photos == nil {
			r.Photos = []string{}
		}
		if _, dup := s.reports[r.ID]; !dup {
			s.order = append(s.order, r.ID)
		}
		s.reports[r.ID] = r
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, r model.Report) (model.Report, error) {
	if err := ctx.Err(); err != nil {
		return model.Report{}, err
	}

	s.mu.Lock()
	r.ID = s.newID()
	r.CreatedAt = s.now()
	r.Photos = append([]string{}, r.Photos...)
	s.reports[r.ID] = r
	s.order = append(s.order, r.ID)
	err := s.persistLocked()
	if err != nil {
		delete(s.reports, r.ID)
		s.order = s.order[:len(s.order)-1]
	}
	s.mu.Unlock()
	if err != nil {
		return model.Report{}, err
	}

	s.bc.Publish(Change{Op: OpInsert, ID: r.ID, At: r.CreatedAt})
	return r, nil
}

func (s *MemoryStore) List(ctx context.Context, f model.Filter) ([]model.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]model.Report, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.reports[s.order[i]]
		if f.Match(r) {
			r.Photos = append([]string{}, r.Photos...)
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (model.Report, error) {
	if err := ctx.Err(); err != nil {
		return model.Report{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return model.Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Photos = append([]string{}, r.Photos...)
	return r, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, p model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	r, ok := s.reports[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.reports[id] = p.Apply(r)
	err := s.persistLocked()
	if err != nil {
		s.reports[id] = r
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.bc.Publish(Change{Op: OpUpdate, ID: id, At: s.now()})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	r, ok := s.reports[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prevOrder := s.order
	order := make([]string, 0, len(prevOrder))
	for _, oid := range prevOrder {
		if oid != id {
			order = append(order, oid)
		}
	}
	delete(s.reports, id)
	s.order = order
	err := s.persistLocked()
	if err != nil {
		// A failed write leaves the store as it was.
		s.reports[id] = r
		s.order = prevOrder
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.bc.Publish(Change{Op: OpDelete, ID: id, At: s.now()})
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	return s.bc.Subscribe(ctx)
}

func (s *MemoryStore) Close() error {
	s.bc.Close()
	return nil
}

// Len returns the number of stored reports.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// sortNewestFirst orders by CreatedAt descending. Reports without a creation
// time go last; ties keep their current order.
func sortNewestFirst(rs []model.Report) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].CreatedAt, rs[j].CreatedAt
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}
