package manager

import (
	"errors"
	"sync"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/google/uuid"
)

// State holds the pages and blocks resolved during one request. It is
// owned by a single Manager and never shared across requests.
type State struct {
	mu      sync.Mutex
	pages   map[uuid.UUID]PageSource
	refs    map[pages.Field]map[string]uuid.UUID
	blocks  map[uuid.UUID]*blocks.Block
	current PageSource
}

func newState() *State {
	return &State{
		pages:  map[uuid.UUID]PageSource{},
		refs:   map[pages.Field]map[string]uuid.UUID{},
		blocks: map[uuid.UUID]*blocks.Block{},
	}
}

// lookup returns the cached page for field=value, if any.
func (s *State) lookup(field pages.Field, value string) (PageSource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id uuid.UUID
	if field == pages.FieldID {
		parsed, err := uuid.Parse(value)
		if err != nil {
			return nil, false
		}
		id = parsed
	} else {
		ref, ok := s.refs[field][value]
		if !ok {
			return nil, false
		}
		id = ref
	}
	source, ok := s.pages[id]
	return source, ok
}

// remember stores source unless a page with the same id is already cached,
// in which case the cached instance wins and is returned.
func (s *State) remember(field pages.Field, value string, source PageSource) PageSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := source.Page().ID
	if existing, ok := s.pages[id]; ok {
		source = existing
	} else {
		s.pages[id] = source
	}
	if field != pages.FieldID {
		if s.refs[field] == nil {
			s.refs[field] = map[string]uuid.UUID{}
		}
		s.refs[field][value] = id
	}
	return source
}

func (s *State) indexBlocks(list []*blocks.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, block := range list {
		if _, ok := s.blocks[block.ID]; !ok {
			s.blocks[block.ID] = block
		}
	}
}

func (s *State) block(id uuid.UUID) (*blocks.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[id]
	return block, ok
}

func (s *State) setCurrent(source PageSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = source
}

func (s *State) getCurrent() PageSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
