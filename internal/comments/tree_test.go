package comments

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceqa/pkg/models"
)

func ptr(s string) *string { return &s }

// idShape projects a tree down to IDs so structural diffs stay readable.
type idShape struct {
	ID      string
	Replies []idShape
}

func shapeOf(tree []*models.Comment) []idShape {
	shapes := make([]idShape, 0, len(tree))
	for _, c := range tree {
		shapes = append(shapes, idShape{ID: c.ID, Replies: shapeOf(c.Replies)})
	}
	return shapes
}

func TestBuildTreeNesting(t *testing.T) {
	flat := []*models.Comment{
		{ID: "root-1"},
		{ID: "root-2"},
		{ID: "reply-1", ParentCommentID: ptr("root-1")},
		{ID: "reply-2", ParentCommentID: ptr("root-1")},
		{ID: "nested", ParentCommentID: ptr("reply-1")},
	}

	tree := BuildTree(flat)

	want := []idShape{
		{ID: "root-1", Replies: []idShape{
			{ID: "reply-1", Replies: []idShape{{ID: "nested", Replies: []idShape{}}}},
			{ID: "reply-2", Replies: []idShape{}},
		}},
		{ID: "root-2", Replies: []idShape{}},
	}
	if diff := cmp.Diff(want, shapeOf(tree)); diff != "" {
		t.Errorf("tree shape mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, tree, 2)
	assert.NotNil(t, tree[1].Replies)
}

func TestBuildTreePreservesInputOrder(t *testing.T) {
	// Input is created_at-ordered; siblings must keep that order.
	flat := []*models.Comment{
		{ID: "root"},
		{ID: "first", ParentCommentID: ptr("root")},
		{ID: "second", ParentCommentID: ptr("root")},
		{ID: "third", ParentCommentID: ptr("root")},
	}

	tree := BuildTree(flat)

	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 3)
	assert.Equal(t, "first", tree[0].Replies[0].ID)
	assert.Equal(t, "second", tree[0].Replies[1].ID)
	assert.Equal(t, "third", tree[0].Replies[2].ID)
}

func TestBuildTreeOrphanPromotedToRoot(t *testing.T) {
	flat := []*models.Comment{
		{ID: "root"},
		{ID: "orphan", ParentCommentID: ptr("gone")},
	}

	tree := BuildTree(flat)

	require.Len(t, tree, 2)
	assert.Equal(t, "orphan", tree[1].ID)
}

func TestBuildTreeSelfParentDoesNotLoop(t *testing.T) {
	flat := []*models.Comment{
		{ID: "weird", ParentCommentID: ptr("weird")},
	}

	tree := BuildTree(flat)

	require.Len(t, tree, 1)
	assert.Empty(t, tree[0].Replies)
}

func TestBuildTreeEmpty(t *testing.T) {
	tree := BuildTree(nil)
	require.NotNil(t, tree)
	assert.Empty(t, tree)
}
