package blocks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-pagecms/internal/identity"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/google/uuid"
)

// Service manages live blocks.
type Service interface {
	Create(ctx context.Context, input CreateBlockInput) (*Block, error)
	// CreateContainer creates an enabled container at position 1.
	CreateContainer(ctx context.Context, input CreateContainerInput) (*Block, error)
	Update(ctx context.Context, input UpdateBlockInput) (*Block, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Block, error)
	// Tree loads every block of the page in one query and assembles it.
	Tree(ctx context.Context, pageID uuid.UUID) (*Tree, error)
	ListShared(ctx context.Context) ([]*Block, error)
}

type CreateBlockInput struct {
	ID       uuid.UUID
	PageID   *uuid.UUID
	ParentID *uuid.UUID
	Kind     Kind
	Type     string
	Name     string
	Position int
	Enabled  *bool
	Settings map[string]any
}

type CreateContainerInput struct {
	PageID   uuid.UUID
	Name     string
	ParentID *uuid.UUID
}

type UpdateBlockInput struct {
	ID       uuid.UUID
	ParentID *uuid.UUID
	Position *int
	Enabled  *bool
	Settings map[string]any
}

// SettingsValidator checks a block's settings against its renderer.
type SettingsValidator interface {
	Validate(block *Block) error
}

// PageMarker flags pages whose blocks changed.
type PageMarker interface {
	MarkEdited(ctx context.Context, id uuid.UUID) (*pages.Page, error)
}

type IDGenerator func() uuid.UUID

type ServiceOption func(*service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithIDGenerator(generator IDGenerator) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.id = generator
		}
	}
}

func WithSettingsValidator(validator SettingsValidator) ServiceOption {
	return func(s *service) {
		s.validator = validator
	}
}

func WithPageMarker(marker PageMarker) ServiceOption {
	return func(s *service) {
		s.pages = marker
	}
}

func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

type service struct {
	repo      Repository
	now       func() time.Time
	id        IDGenerator
	validator SettingsValidator
	pages     PageMarker
	logger    interfaces.Logger
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		now:    time.Now,
		id:     uuid.New,
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, input CreateBlockInput) (*Block, error) {
	if !input.Kind.Valid() {
		return nil, ErrKindInvalid
	}
	if input.Position < 0 {
		return nil, ErrPositionInvalid
	}
	now := s.now().UTC()
	block := &Block{
		ID:        input.ID,
		PageID:    cloneUUID(input.PageID),
		ParentID:  cloneUUID(input.ParentID),
		Kind:      input.Kind,
		Type:      strings.TrimSpace(input.Type),
		Name:      strings.TrimSpace(input.Name),
		Position:  input.Position,
		Enabled:   input.Enabled == nil || *input.Enabled,
		Settings:  CloneSettings(input.Settings),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if block.ID == uuid.Nil {
		block.ID = s.id()
	}
	if block.Position == 0 {
		block.Position = 1
	}
	if block.Settings == nil {
		block.Settings = map[string]any{}
	}
	if err := s.prepareKind(ctx, block); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, block); err != nil {
		return nil, err
	}
	if s.validator != nil {
		if err := s.validator.Validate(block); err != nil {
			return nil, err
		}
	}
	created, err := s.repo.Create(ctx, block)
	if err != nil {
		return nil, err
	}
	s.touchPage(ctx, created)
	s.logger.Debug("blocks.create.completed", "block_id", created.ID, "kind", created.Kind, "type", created.Type)
	return created, nil
}

func (s *service) CreateContainer(ctx context.Context, input CreateContainerInput) (*Block, error) {
	if input.PageID == uuid.Nil {
		return nil, ErrPageRequired
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrContainerNameRequired
	}
	pageID := input.PageID
	id := uuid.Nil
	if input.ParentID == nil {
		id = identity.ContainerUUID(pageID, name)
	}
	return s.Create(ctx, CreateBlockInput{
		ID:       id,
		PageID:   &pageID,
		ParentID: input.ParentID,
		Kind:     KindContainer,
		Type:     TypeContainer,
		Name:     name,
		Position: 1,
		Settings: map[string]any{SettingCode: name},
	})
}

func (s *service) Update(ctx context.Context, input UpdateBlockInput) (*Block, error) {
	block, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if input.ParentID != nil {
		block.ParentID = cloneUUID(input.ParentID)
		if err := s.checkParent(ctx, block); err != nil {
			return nil, err
		}
	}
	if input.Position != nil {
		if *input.Position < 0 {
			return nil, ErrPositionInvalid
		}
		block.Position = *input.Position
	}
	if input.Enabled != nil {
		block.Enabled = *input.Enabled
	}
	if input.Settings != nil {
		block.Settings = CloneSettings(input.Settings)
		if err := s.prepareKind(ctx, block); err != nil {
			return nil, err
		}
		if s.validator != nil {
			if err := s.validator.Validate(block); err != nil {
				return nil, err
			}
		}
	}
	block.UpdatedAt = s.now().UTC()
	updated, err := s.repo.Update(ctx, block)
	if err != nil {
		return nil, err
	}
	s.touchPage(ctx, updated)
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	block, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if block.PageID != nil {
		list, err := s.repo.ListByPage(ctx, *block.PageID)
		if err != nil {
			return err
		}
		tree, err := BuildTree(list)
		if err != nil {
			return err
		}
		if node, ok := tree.Get(id); ok {
			descendants := Flatten(node.Children)
			for i := len(descendants) - 1; i >= 0; i-- {
				if err := s.repo.Delete(ctx, descendants[i].ID); err != nil {
					return err
				}
			}
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.touchPage(ctx, block)
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Block, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Tree(ctx context.Context, pageID uuid.UUID) (*Tree, error) {
	list, err := s.repo.ListByPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return BuildTree(list)
}

func (s *service) ListShared(ctx context.Context) ([]*Block, error) {
	return s.repo.ListShared(ctx)
}

func (s *service) prepareKind(ctx context.Context, block *Block) error {
	switch block.Kind {
	case KindContainer:
		if block.PageID == nil {
			return ErrPageRequired
		}
		if block.Name == "" {
			block.Name = block.StringSetting(SettingName, "")
		}
		if block.Name == "" {
			return ErrContainerNameRequired
		}
		if block.Type == "" {
			block.Type = TypeContainer
		}
		block.Settings[SettingName] = block.Name
	case KindSharedReference:
		if block.Type == "" {
			block.Type = TypeShared
		}
		targetID, ok := block.SharedBlockID()
		if !ok {
			return ErrSharedTargetRequired
		}
		target, err := s.repo.GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		if !target.IsShared() {
			return ErrSharedTargetNotShared
		}
	default:
		if block.Type == "" {
			return ErrTypeRequired
		}
	}
	return nil
}

func (s *service) checkParent(ctx context.Context, block *Block) error {
	if block.ParentID == nil {
		return nil
	}
	if *block.ParentID == block.ID {
		return ErrTreeCycle
	}
	parent, err := s.repo.GetByID(ctx, *block.ParentID)
	if err != nil {
		return err
	}
	if !samePage(parent.PageID, block.PageID) {
		return ErrParentPageMismatch
	}
	seen := map[uuid.UUID]struct{}{block.ID: {}}
	current := parent
	for {
		if _, ok := seen[current.ID]; ok {
			return ErrTreeCycle
		}
		seen[current.ID] = struct{}{}
		if current.ParentID == nil {
			return nil
		}
		next, err := s.repo.GetByID(ctx, *current.ParentID)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				return nil
			}
			return err
		}
		current = next
	}
}

func (s *service) touchPage(ctx context.Context, block *Block) {
	if block == nil {
		return
	}
	s.touchAncestors(ctx, block)
	if s.pages == nil || block.PageID == nil {
		return
	}
	if _, err := s.pages.MarkEdited(ctx, *block.PageID); err != nil {
		s.logger.Warn("blocks.page.mark_edited_failed", "page_id", *block.PageID, "error", err)
	}
}

// touchAncestors bumps updated_at up the parent chain so cached container
// output keyed on it is invalidated.
func (s *service) touchAncestors(ctx context.Context, block *Block) {
	now := s.now().UTC()
	seen := map[uuid.UUID]struct{}{block.ID: {}}
	parentID := block.ParentID
	for parentID != nil {
		if _, ok := seen[*parentID]; ok {
			return
		}
		seen[*parentID] = struct{}{}
		parent, err := s.repo.GetByID(ctx, *parentID)
		if err != nil {
			s.logger.Warn("blocks.parent.touch_failed", "block_id", *parentID, "error", err)
			return
		}
		parent.UpdatedAt = now
		if _, err := s.repo.Update(ctx, parent); err != nil {
			s.logger.Warn("blocks.parent.touch_failed", "block_id", parent.ID, "error", err)
			return
		}
		parentID = parent.ParentID
	}
}

func samePage(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
