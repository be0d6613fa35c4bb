// Package cart holds the shopper's in-progress selection in device-local
// persisted storage. All mutation goes through Store so the cart invariants
// hold at a single choke point: at most one entry per product, counts stay
// between 1 and the stock snapshot, and every mutation is persisted before
// subscribers are told about it.
package cart

import (
	"encoding/json"
	"fmt"
	"sync"

	"shopfront/pkg/domain"
	"shopfront/pkg/localdata"
)

const recordName = "cart"

// Store is the device-local cart. The cart outlives sessions on purpose: an
// anonymous shopper keeps their items across sign-out and sign-in.
type Store struct {
	mu      sync.Mutex
	backend localdata.Backend
	entries []domain.CartEntry
	subs    []func()
}

// New loads the persisted cart, starting empty when no record exists.
func New(backend localdata.Backend) (*Store, error) {
	s := &Store{backend: backend}
	data, ok, err := backend.Load(recordName)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("decode cart: %w", err)
		}
	}
	return s, nil
}

// Subscribe registers fn to run after every cart mutation. The navigation
// badge and the cart view are independent subscribers, not callers of each
// other.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Add merges requested into an existing entry for the product or appends a
// new entry. The resulting count is clamped at the product's stock snapshot.
// A requested count below 1 is treated as 1.
func (s *Store) Add(p domain.Product, requested int) error {
	if requested < 1 {
		requested = 1
	}
	return s.mutate(func() {
		for i := range s.entries {
			if s.entries[i].ProductID == p.ID {
				s.entries[i].Count = clampCount(s.entries[i].Count+requested, s.entries[i].Product.Stock)
				return
			}
		}
		s.entries = append(s.entries, domain.CartEntry{
			ProductID: p.ID,
			Product:   p,
			Count:     clampCount(requested, p.Stock),
		})
	})
}

// SetCount overwrites the entry's count, clamped at the stock snapshot. A
// count of zero or less removes the entry. An absent product id is a silent
// no-op: the UI only calls this against entries it just rendered, so a stale
// id is not an error.
func (s *Store) SetCount(productID string, count int) error {
	if count <= 0 {
		return s.Remove(productID)
	}
	return s.mutate(func() {
		for i := range s.entries {
			if s.entries[i].ProductID == productID {
				s.entries[i].Count = clampCount(count, s.entries[i].Product.Stock)
				return
			}
		}
	})
}

// Remove deletes the entry if present. Removing twice is a no-op.
func (s *Store) Remove(productID string) error {
	return s.mutate(func() {
		kept := s.entries[:0]
		for _, e := range s.entries {
			if e.ProductID != productID {
				kept = append(kept, e)
			}
		}
		s.entries = kept
	})
}

// Clear empties the cart. Used after checkout confirmation or an explicit
// "empty cart" action.
func (s *Store) Clear() error {
	return s.mutate(func() {
		s.entries = nil
	})
}

// Entries returns a snapshot of the cart in add order. Mutating the returned
// slice does not affect stored state.
func (s *Store) Entries() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// TotalCount returns the sum of entry counts.
func (s *Store) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, e := range s.entries {
		total += e.Count
	}
	return total
}

// TotalPrice returns the sum of price times count over all entries.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, e := range s.entries {
		total += e.Product.Price * float64(e.Count)
	}
	return total
}

// mutate applies fn under the lock, persists the result, and notifies
// subscribers. Subscribers run outside the lock so they can read the store.
func (s *Store) mutate(fn func()) error {
	s.mu.Lock()
	fn()
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.backend.Store(recordName, data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist cart: %w", err)
	}
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
	return nil
}

// clampCount caps count at the stock snapshot. A non-positive stock snapshot
// means the product never carried a quantity; such entries are uncapped.
func clampCount(count, stock int) int {
	if stock > 0 && count > stock {
		return stock
	}
	if count < 1 {
		return 1
	}
	return count
}
