package blocks

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestBuildTreeOrdersSiblingsByPosition(t *testing.T) {
	page := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	header := uuid.MustParse("00000000-0000-0000-0000-000000000010")
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	list := []*Block{
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000013"), PageID: &page, ParentID: ptr(header), Kind: KindContent, Type: "text", Position: 2, CreatedAt: created},
		{ID: header, PageID: &page, Kind: KindContainer, Type: TypeContainer, Name: "header", Position: 1, CreatedAt: created},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000012"), PageID: &page, ParentID: ptr(header), Kind: KindContent, Type: "text", Position: 2, CreatedAt: created},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000011"), PageID: &page, ParentID: ptr(header), Kind: KindContent, Type: "text", Position: 5, CreatedAt: created},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000014"), PageID: &page, ParentID: ptr(header), Kind: KindContent, Type: "text", Position: 1, CreatedAt: created.Add(time.Hour)},
	}

	tree, err := BuildTree(list)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if len(tree.Roots) != 1 || tree.Len() != 5 {
		t.Fatalf("expected single root with five blocks, got %d roots / %d", len(tree.Roots), tree.Len())
	}
	children := tree.Roots[0].Children
	want := []string{"14", "12", "13", "11"}
	for i, child := range children {
		if got := child.ID.String()[34:]; got != want[i] {
			t.Fatalf("child %d: expected ...%s, got ...%s", i, want[i], got)
		}
		if i > 0 && children[i-1].Position > child.Position {
			t.Fatalf("positions out of order at %d", i)
		}
	}
	if _, ok := tree.Container("header"); !ok {
		t.Fatalf("expected header container")
	}
	if _, ok := tree.Container("footer"); ok {
		t.Fatalf("did not expect footer container")
	}
}

func TestBuildTreeDetectsCycles(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	b := uuid.MustParse("00000000-0000-0000-0000-0000000000bb")
	_, err := BuildTree([]*Block{
		{ID: a, ParentID: ptr(b), Kind: KindContent, Type: "text"},
		{ID: b, ParentID: ptr(a), Kind: KindContent, Type: "text"},
	})
	if !errors.Is(err, ErrTreeCycle) {
		t.Fatalf("expected ErrTreeCycle, got %v", err)
	}
}

func TestBuildTreeTreatsDanglingParentAsRoot(t *testing.T) {
	orphan := uuid.MustParse("00000000-0000-0000-0000-0000000000cc")
	tree, err := BuildTree([]*Block{{ID: orphan, ParentID: ptr(uuid.New()), Kind: KindContent, Type: "text"}})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if len(tree.Roots) != 1 || tree.Roots[0].ID != orphan {
		t.Fatalf("expected orphan to be promoted to root")
	}
}

func TestFlattenIsDepthFirst(t *testing.T) {
	leaf := &Block{ID: uuid.MustParse("00000000-0000-0000-0000-000000000003")}
	mid := &Block{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Children: []*Block{leaf}}
	root := &Block{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Children: []*Block{mid}}
	other := &Block{ID: uuid.MustParse("00000000-0000-0000-0000-000000000004")}

	flat := Flatten([]*Block{root, other})
	if len(flat) != 4 || flat[0] != root || flat[1] != mid || flat[2] != leaf || flat[3] != other {
		t.Fatalf("unexpected flatten order")
	}
	tree := IndexTree([]*Block{root, other})
	if got, ok := tree.Get(leaf.ID); !ok || got != leaf {
		t.Fatalf("expected nested leaf to be indexed")
	}
}

func TestCloneTreeIsDeep(t *testing.T) {
	child := &Block{ID: uuid.New(), Settings: map[string]any{"nested": map[string]any{"k": "v"}}}
	root := &Block{ID: uuid.New(), Children: []*Block{child}}
	cloned := CloneTree(root)
	cloned.Children[0].Settings["nested"].(map[string]any)["k"] = "changed"
	if child.Settings["nested"].(map[string]any)["k"] != "v" {
		t.Fatalf("expected clone to be independent")
	}
}
