package thread

import (
	"context"

	"github.com/voiceqa/pkg/models"
)

// Store is the external comment store consumed by the thread controller and
// composer. It is the sole source of truth: every mutation is followed by a
// full reload of the entity's tree, never an optimistic local edit. The REST
// client in this package implements it; tests substitute fakes.
type Store interface {
	// ListComments returns the full, pre-nested reply tree for one entity.
	ListComments(ctx context.Context, entityType, entityID string) ([]*models.Comment, error)

	// CreateComment persists a new root comment or reply and returns it with
	// its server-assigned ID and timestamps.
	CreateComment(ctx context.Context, req models.CreateCommentRequest) (*models.Comment, error)

	// UpdateComment replaces a comment's content and mention set.
	UpdateComment(ctx context.Context, commentID string, req models.UpdateCommentRequest) (*models.Comment, error)

	// DeleteComment removes a comment. With force set, its reply subtree is
	// removed as well; without it the store refuses to delete a comment that
	// has replies.
	DeleteComment(ctx context.Context, commentID string, force bool) (bool, error)

	// SuggestMentions looks up mention candidates for a partial query.
	SuggestMentions(ctx context.Context, query string) ([]models.MentionSuggestion, error)
}

// SuggestionSource is the slice of Store the composer needs. Kept separate so
// a composer can be driven without a full store behind it.
type SuggestionSource interface {
	SuggestMentions(ctx context.Context, query string) ([]models.MentionSuggestion, error)
}

// ConfirmRequest asks the host shell to put a confirmation dialog in front of
// the user. OnConfirm must be invoked only on an explicit confirmation; doing
// nothing is a cancel.
type ConfirmRequest struct {
	Message     string
	Title       string
	ConfirmText string
	CancelText  string
	OnConfirm   func()
}

// Confirmer is the host collaborator that presents confirmation dialogs. The
// controller never deletes a comment without this round-trip.
type Confirmer interface {
	RequestConfirm(req ConfirmRequest)
}
