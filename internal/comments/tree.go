package comments

import (
	"github.com/voiceqa/pkg/models"
)

// BuildTree nests a created_at-ordered flat list of comments into the reply
// tree the API serves: every comment hangs off the node whose ID matches its
// ParentCommentID, and order within each level follows the input order.
// A comment whose parent is missing from the batch is promoted to a root
// rather than dropped, so a partially-read thread still renders.
func BuildTree(flat []*models.Comment) []*models.Comment {
	byID := make(map[string]*models.Comment, len(flat))
	for _, c := range flat {
		if c.Replies == nil {
			c.Replies = []*models.Comment{}
		}
		byID[c.ID] = c
	}

	roots := []*models.Comment{}
	for _, c := range flat {
		if c.ParentCommentID == nil {
			roots = append(roots, c)
			continue
		}
		parent, ok := byID[*c.ParentCommentID]
		if !ok || parent == c {
			roots = append(roots, c)
			continue
		}
		parent.Replies = append(parent.Replies, c)
	}
	return roots
}
