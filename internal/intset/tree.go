package intset

import "sort"

// Tree is an immutable parent/child snapshot of an ID space. It is the
// Hierarchy the membership sets use, built once from the store so that set
// operations never touch the database.
type Tree struct {
	root     int
	parent   map[int]int
	children map[int][]int
}

// NewTree builds a Tree from an id -> parent map. The root must map to itself;
// entries whose parent is missing from the map are attached to nothing and are
// unreachable from the root, but still valid.
func NewTree(root int, parents map[int]int) *Tree {
	t := &Tree{
		root:     root,
		parent:   make(map[int]int, len(parents)+1),
		children: make(map[int][]int),
	}
	t.parent[root] = root
	for id, p := range parents {
		t.parent[id] = p
		if id != p {
			t.children[p] = append(t.children[p], id)
		}
	}
	for _, kids := range t.children {
		sort.Ints(kids)
	}
	return t
}

// Root returns the root ID.
func (t *Tree) Root() int { return t.root }

// Parent returns the parent of id. The root is its own parent. Unknown IDs
// return themselves so upward walks terminate.
func (t *Tree) Parent(id int) int {
	p, ok := t.parent[id]
	if !ok {
		return id
	}
	return p
}

// Children returns the sorted child IDs of id.
func (t *Tree) Children(id int) []int {
	return t.children[id]
}

// Valid reports whether id is part of the snapshot.
func (t *Tree) Valid(id int) bool {
	_, ok := t.parent[id]
	return ok
}

// Len returns the number of IDs in the snapshot, root included.
func (t *Tree) Len() int { return len(t.parent) }

// IDs returns every ID in the snapshot in ascending order.
func (t *Tree) IDs() []int {
	ids := make([]int, 0, len(t.parent))
	for id := range t.parent {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
