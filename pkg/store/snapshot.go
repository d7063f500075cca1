package store

import (
	"slices"

	"github.com/getmockd/odatad/pkg/entity"
)

// Snapshot is a consistent, read-only copy of the store taken at one instant.
// Queries evaluate against a snapshot so they never observe a half-applied
// mutation.
type Snapshot struct {
	sets map[string][]entity.Entity
	pos  map[string]map[int64]int
	// ordersOf lists order positions per customer key, ascending.
	ordersOf map[int64][]int
}

func newSnapshot(customers []entity.Customer, orders []entity.Order, refs map[int64][]int64) *Snapshot {
	s := &Snapshot{
		sets:     make(map[string][]entity.Entity, 2),
		pos:      make(map[string]map[int64]int, 2),
		ordersOf: make(map[int64][]int, len(refs)),
	}
	s.add(entity.SetCustomers, toEntities(customers))
	s.add(entity.SetOrders, toEntities(orders))

	orderPos := s.pos[entity.SetOrders]
	for cid, ids := range refs {
		positions := make([]int, 0, len(ids))
		for _, id := range ids {
			if p, ok := orderPos[id]; ok {
				positions = append(positions, p)
			}
		}
		slices.Sort(positions)
		s.ordersOf[cid] = positions
	}
	return s
}

func toEntities[T entity.Entity](items []T) []entity.Entity {
	out := make([]entity.Entity, len(items))
	for i, e := range items {
		out[i] = e
	}
	return out
}

func (s *Snapshot) add(set string, items []entity.Entity) {
	idx := make(map[int64]int, len(items))
	for i, e := range items {
		idx[e.Key()] = i
	}
	s.sets[set] = items
	s.pos[set] = idx
}

// Entities returns the entities of set in insertion order. The slice must not
// be modified.
func (s *Snapshot) Entities(set string) []entity.Entity {
	return s.sets[set]
}

// Find returns the entity of set stored under key.
func (s *Snapshot) Find(set string, key int64) (entity.Entity, bool) {
	i, ok := s.pos[set][key]
	if !ok {
		return nil, false
	}
	return s.sets[set][i], true
}

// Related follows the navigation nav from an entity. A single-valued
// navigation yields zero or one entity.
func (s *Snapshot) Related(from entity.Entity, nav string) []entity.Entity {
	switch e := from.(type) {
	case entity.Order:
		if nav != entity.NavCustomer {
			return nil
		}
		cid, ok := e.Customer()
		if !ok {
			return nil
		}
		if c, ok := s.Find(entity.SetCustomers, cid); ok {
			return []entity.Entity{c}
		}
		return nil
	case entity.Customer:
		if nav != entity.NavOrders {
			return nil
		}
		positions := s.ordersOf[e.ID]
		orders := s.sets[entity.SetOrders]
		out := make([]entity.Entity, 0, len(positions))
		for _, p := range positions {
			out = append(out, orders[p])
		}
		return out
	}
	return nil
}

// Len returns the number of entities in set.
func (s *Snapshot) Len(set string) int {
	return len(s.sets[set])
}
