package thread

import (
	"github.com/voiceqa/pkg/models"
)

// maxNormalizeDepth bounds recursion while normalizing. The store is expected
// to return an acyclic tree, but data that somehow chains deeper than this is
// truncated rather than overflowing the stack.
const maxNormalizeDepth = 1000

// Normalize makes a comment tree safe to traverse: nil slices (absent or
// malformed "replies" in store data) become empty slices and nil nodes are
// dropped, recursively at every depth. Order is preserved exactly as the
// store returned it; the client never reparents, sorts, or flattens.
func Normalize(comments []*models.Comment) []*models.Comment {
	return normalizeDepth(comments, 0)
}

func normalizeDepth(comments []*models.Comment, depth int) []*models.Comment {
	out := make([]*models.Comment, 0, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		if depth >= maxNormalizeDepth {
			c.Replies = []*models.Comment{}
		} else {
			c.Replies = normalizeDepth(c.Replies, depth+1)
		}
		out = append(out, c)
	}
	return out
}

// Walk visits every comment in the tree depth-first, parents before replies,
// in store order. Rendering and lookups go through here so traversal order is
// identical everywhere.
func Walk(comments []*models.Comment, visit func(c *models.Comment, depth int)) {
	walkDepth(comments, 0, visit)
}

func walkDepth(comments []*models.Comment, depth int, visit func(c *models.Comment, depth int)) {
	for _, c := range comments {
		visit(c, depth)
		walkDepth(c.Replies, depth+1, visit)
	}
}

// Find returns the comment with the given ID anywhere in the tree, or nil.
func Find(comments []*models.Comment, commentID string) *models.Comment {
	for _, c := range comments {
		if c.ID == commentID {
			return c
		}
		if found := Find(c.Replies, commentID); found != nil {
			return found
		}
	}
	return nil
}
