package blocks

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Compare orders siblings by position, then creation time, then id.
func Compare(a, b *Block) int {
	if a.Position != b.Position {
		if a.Position < b.Position {
			return -1
		}
		return 1
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return slices.Compare(a.ID[:], b.ID[:])
}

// Sort orders list in place using Compare.
func Sort(list []*Block) {
	slices.SortStableFunc(list, Compare)
}

// Tree is the assembled block forest of one page.
type Tree struct {
	Roots []*Block
	index map[uuid.UUID]*Block
}

// BuildTree links a flat block list by parent id. The input blocks are cloned
// so callers keep ownership of their slice. A block whose parent is absent
// from the list becomes a root; blocks unreachable from any root indicate a
// cycle and fail the build.
func BuildTree(list []*Block) (*Tree, error) {
	tree := &Tree{index: make(map[uuid.UUID]*Block, len(list))}
	for _, item := range list {
		if item == nil {
			continue
		}
		tree.index[item.ID] = Clone(item)
	}
	for _, node := range tree.index {
		if node.ParentID == nil {
			tree.Roots = append(tree.Roots, node)
			continue
		}
		parent, ok := tree.index[*node.ParentID]
		if !ok {
			tree.Roots = append(tree.Roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	Sort(tree.Roots)
	reached := 0
	var walk func(nodes []*Block)
	walk = func(nodes []*Block) {
		for _, node := range nodes {
			reached++
			Sort(node.Children)
			walk(node.Children)
		}
	}
	walk(tree.Roots)
	if reached != len(tree.index) {
		return nil, fmt.Errorf("%w: %d of %d blocks unreachable", ErrTreeCycle, len(tree.index)-reached, len(tree.index))
	}
	return tree, nil
}

// Get returns the block with id anywhere in the tree.
func (t *Tree) Get(id uuid.UUID) (*Block, bool) {
	if t == nil {
		return nil, false
	}
	block, ok := t.index[id]
	return block, ok
}

// Len returns the number of blocks in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.index)
}

// Container returns the top level container named name.
func (t *Tree) Container(name string) (*Block, bool) {
	if t == nil {
		return nil, false
	}
	for _, root := range t.Roots {
		if root.IsContainer() && root.Name == name {
			return root, true
		}
	}
	return nil, false
}

// Add links block into the tree, under its parent when present.
func (t *Tree) Add(block *Block) {
	if t.index == nil {
		t.index = map[uuid.UUID]*Block{}
	}
	t.index[block.ID] = block
	if block.ParentID != nil {
		if parent, ok := t.index[*block.ParentID]; ok {
			parent.Children = append(parent.Children, block)
			Sort(parent.Children)
			return
		}
	}
	t.Roots = append(t.Roots, block)
	Sort(t.Roots)
}

// Flatten walks roots depth first, parents before children.
func Flatten(roots []*Block) []*Block {
	out := []*Block{}
	var walk func(nodes []*Block)
	walk = func(nodes []*Block) {
		for _, node := range nodes {
			out = append(out, node)
			walk(node.Children)
		}
	}
	walk(roots)
	return out
}

// IndexTree builds a tree from blocks that are already nested, as they
// arrive from a snapshot document.
func IndexTree(roots []*Block) *Tree {
	tree := &Tree{Roots: roots, index: map[uuid.UUID]*Block{}}
	for _, block := range Flatten(roots) {
		tree.index[block.ID] = block
	}
	return tree
}
