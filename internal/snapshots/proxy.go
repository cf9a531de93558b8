package snapshots

import (
	"context"
	"sync"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/pages"
)

// PageProxy is the read-only page view of a snapshot. Page scalars are
// decoded when the proxy is built; the block forest is decoded on the first
// call to Blocks.
type PageProxy struct {
	snapshot *Snapshot
	page     *pages.Page
	raw      []any

	once sync.Once
	tree *blocks.Tree
	err  error
}

// Snapshot returns the row the proxy was loaded from.
func (p *PageProxy) Snapshot() *Snapshot {
	return p.snapshot
}

// Page returns the decoded page. Callers must treat it as read-only.
func (p *PageProxy) Page() *pages.Page {
	return p.page
}

// Blocks decodes and indexes the block forest once.
func (p *PageProxy) Blocks(context.Context) (*blocks.Tree, error) {
	p.once.Do(func() {
		roots, err := decodeBlocks(p.raw, p.page.ID)
		if err != nil {
			p.err = err
			return
		}
		p.tree = blocks.IndexTree(roots)
		p.raw = nil
	})
	return p.tree, p.err
}

// Loaded reports whether Blocks has already decoded the forest.
func (p *PageProxy) Loaded() bool {
	return p.raw == nil
}
