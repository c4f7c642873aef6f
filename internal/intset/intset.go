// Package intset provides a set of non-negative integer IDs that understands
// a parent/child tree over those IDs. The tree relation is supplied by a
// Hierarchy injected at construction, so the same set type serves paths,
// actions and packages.
//
// Policy for bad input: adding an ID the hierarchy does not know returns
// ErrInvalidID and changes nothing; removing or querying such an ID is a
// no-op. Merging or extracting sets built over different hierarchies returns
// ErrIncompatible.
package intset

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidID is returned when an ID is negative or unknown to the hierarchy.
var ErrInvalidID = errors.New("invalid id")

// ErrIncompatible is returned when two sets over different hierarchies are combined.
var ErrIncompatible = errors.New("sets use different hierarchies")

// Hierarchy supplies the tree relation over an ID space.
type Hierarchy interface {
	// Root returns the tree root, which is its own parent.
	Root() int
	// Parent returns the parent of id.
	Parent(id int) int
	// Children returns the direct children of id.
	Children(id int) []int
	// Valid reports whether id exists.
	Valid(id int) bool
}

// Set is a set of IDs with a default membership state for IDs that were never
// explicitly added or removed. With the default set to true the set means
// "everything except the removed IDs".
type Set struct {
	h             Hierarchy
	members       map[int]bool
	defaultMember bool
}

// New creates an empty set over h.
func New(h Hierarchy) *Set {
	return &Set{h: h, members: make(map[int]bool)}
}

// NewWithIDs creates a set over h containing ids.
func NewWithIDs(h Hierarchy, ids []int) (*Set, error) {
	s := New(h)
	for _, id := range ids {
		if err := s.Add(id); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Hierarchy returns the hierarchy the set was built over.
func (s *Set) Hierarchy() Hierarchy { return s.h }

// SetDefault sets the membership state of IDs with no explicit entry.
func (s *Set) SetDefault(member bool) { s.defaultMember = member }

// Default returns the membership state of IDs with no explicit entry.
func (s *Set) Default() bool { return s.defaultMember }

func (s *Set) check(id int) error {
	if id < 0 || !s.h.Valid(id) {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return nil
}

// Add inserts id.
func (s *Set) Add(id int) error {
	if err := s.check(id); err != nil {
		return err
	}
	s.members[id] = true
	return nil
}

// Remove deletes id. Unknown IDs are ignored.
func (s *Set) Remove(id int) {
	if s.check(id) != nil {
		return
	}
	s.members[id] = false
}

// IsMember reports whether id is in the set.
func (s *Set) IsMember(id int) bool {
	if s.check(id) != nil {
		return false
	}
	if v, ok := s.members[id]; ok {
		return v
	}
	return s.defaultMember
}

// Members returns the member IDs in ascending order. When the default state
// is "member" the hierarchy is walked from its root to enumerate them.
func (s *Set) Members() []int {
	var ids []int
	if s.defaultMember {
		s.walk(s.h.Root(), 0, func(id int) {
			if s.IsMember(id) {
				ids = append(ids, id)
			}
		})
	} else {
		for id, in := range s.members {
			if in {
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	return ids
}

// Size returns the number of members.
func (s *Set) Size() int {
	return len(s.Members())
}

// Clear removes every member and resets the default state.
func (s *Set) Clear() {
	s.members = make(map[int]bool)
	s.defaultMember = false
}

// Merge adds every member of other into s.
func (s *Set) Merge(other *Set) error {
	if other.h != s.h {
		return ErrIncompatible
	}
	for _, id := range other.Members() {
		s.members[id] = true
	}
	return nil
}

// Extract removes every member of other from s.
func (s *Set) Extract(other *Set) error {
	if other.h != s.h {
		return ErrIncompatible
	}
	for _, id := range other.Members() {
		s.members[id] = false
	}
	return nil
}

// PopulateWithParents adds every ancestor of every member, up to and
// including the root, so a filtered tree can still be rendered.
func (s *Set) PopulateWithParents() {
	for _, id := range s.Members() {
		for {
			p := s.h.Parent(id)
			if p == id {
				break
			}
			s.members[p] = true
			id = p
		}
	}
}

// AddSubTree adds id and all its descendants.
func (s *Set) AddSubTree(id int) error {
	return s.AddSubTreeDepth(id, 0)
}

// AddSubTreeDepth adds id and its descendants down to depth levels, where
// depth 1 is id alone and depth <= 0 is unbounded.
func (s *Set) AddSubTreeDepth(id, depth int) error {
	if err := s.check(id); err != nil {
		return err
	}
	s.walk(id, depth, func(n int) { s.members[n] = true })
	return nil
}

// RemoveSubTree removes id and all its descendants.
func (s *Set) RemoveSubTree(id int) {
	s.RemoveSubTreeDepth(id, 0)
}

// RemoveSubTreeDepth removes id and its descendants down to depth levels,
// using the same depth convention as AddSubTreeDepth.
func (s *Set) RemoveSubTreeDepth(id, depth int) {
	if s.check(id) != nil {
		return
	}
	s.walk(id, depth, func(n int) { s.members[n] = false })
}

// walk visits id and its descendants breadth-first, stopping after depth
// levels when depth > 0.
func (s *Set) walk(id, depth int, visit func(int)) {
	level := []int{id}
	for d := 1; len(level) > 0; d++ {
		var next []int
		for _, n := range level {
			visit(n)
			if depth <= 0 || d < depth {
				next = append(next, s.h.Children(n)...)
			}
		}
		level = next
	}
}

// Clone returns a deep copy sharing the same hierarchy.
func (s *Set) Clone() *Set {
	c := &Set{h: s.h, members: make(map[int]bool, len(s.members)), defaultMember: s.defaultMember}
	for id, v := range s.members {
		c.members[id] = v
	}
	return c
}
