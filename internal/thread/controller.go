package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voiceqa/pkg/models"
)

// ThreadPhase is the controller's top-level state.
type ThreadPhase int

const (
	// ThreadLoading means the initial load (or a reload) is in flight and no
	// tree has been shown yet.
	ThreadLoading ThreadPhase = iota
	// ThreadReady means a normalized tree is available for rendering.
	ThreadReady
	// ThreadError means the last load failed. The tree is forced empty so
	// stale data is never shown under an error banner.
	ThreadError
)

// User-facing messages for store failures. Raw store errors go to the log
// only; nothing status-coded or exception-shaped ever reaches the UI.
const (
	LoadFailedMessage   = "Unable to load comments. Please try again."
	DeleteFailedMessage = "Unable to delete comment. Please try again."

	deleteConfirmTitle   = "Delete comment"
	deleteConfirmMessage = "Are you sure you want to delete this comment? This cannot be undone."
)

// ErrMutationInFlight is returned by Create and Update while another mutation
// is still running. Several composers share one controller (root composer
// plus per-comment reply and edit composers), so a busy controller must
// refuse with an error rather than drop the mutation: a nil return would let
// the rejected composer clear a draft that was never persisted.
var ErrMutationInFlight = errors.New("another mutation is in flight")

// ThreadState is a render-ready snapshot of one entity's comment thread.
type ThreadState struct {
	Phase        ThreadPhase
	Comments     []*models.Comment
	ErrorMessage string
	DeleteError  string

	// Loading and Mutating are the per-operation busy flags; hosts disable
	// the matching controls while they are set to prevent duplicate
	// in-flight mutations.
	Loading  bool
	Mutating bool

	// EditingID is the single comment currently open for editing, or empty.
	EditingID string
}

// Controller orchestrates one entity's comment thread against the external
// store: it loads and normalizes the tree, funnels every mutation through the
// store, and re-synchronizes with a full reload after each one. It holds no
// authority over comment data; the store is the source of truth.
type Controller struct {
	mu sync.Mutex

	store   Store
	confirm Confirmer
	viewer  models.User

	entityType string
	entityID   string

	phase    ThreadPhase
	comments []*models.Comment
	errMsg   string
	delErr   string

	loading  bool
	mutating bool
	editing  string

	// gen guards load results the same way the composer guards suggestion
	// results: a load captured under an older generation is discarded.
	gen    uint64
	closed bool
}

// NewController creates a controller for the thread attached to one entity.
func NewController(store Store, confirm Confirmer, viewer models.User, entityType, entityID string) *Controller {
	return &Controller{
		store:      store,
		confirm:    confirm,
		viewer:     viewer,
		entityType: entityType,
		entityID:   entityID,
		phase:      ThreadLoading,
		comments:   []*models.Comment{},
	}
}

// Load fetches and normalizes the entity's full tree. On failure the thread
// enters the error state with an empty tree; retrying means calling Load
// again.
func (tc *Controller) Load(ctx context.Context) error {
	tc.mu.Lock()
	if tc.closed {
		tc.mu.Unlock()
		return nil
	}
	tc.loading = true
	tc.gen++
	gen := tc.gen
	tc.mu.Unlock()

	comments, err := tc.store.ListComments(ctx, tc.entityType, tc.entityID)

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.closed || gen != tc.gen {
		return nil
	}

	tc.loading = false
	if err != nil {
		log.Error().Err(err).
			Str("entity_type", tc.entityType).
			Str("entity_id", tc.entityID).
			Msg("failed to load comment thread")
		tc.phase = ThreadError
		tc.errMsg = LoadFailedMessage
		tc.comments = []*models.Comment{}
		return fmt.Errorf("failed to load comments: %w", err)
	}

	tc.phase = ThreadReady
	tc.errMsg = ""
	tc.comments = Normalize(comments)
	return nil
}

// Create persists a new root comment or reply, then reloads so the
// server-assigned ID and position are authoritative. A reload failure after a
// successful create is reported through the thread state, not as a create
// failure: the mutation itself succeeded.
func (tc *Controller) Create(ctx context.Context, content string, mentions []models.Mention, parentCommentID *string) error {
	tc.mu.Lock()
	if tc.closed {
		tc.mu.Unlock()
		return nil
	}
	if tc.mutating {
		tc.mu.Unlock()
		return ErrMutationInFlight
	}
	tc.mutating = true
	tc.mu.Unlock()
	defer tc.clearMutating()

	_, err := tc.store.CreateComment(ctx, models.CreateCommentRequest{
		EntityType:      tc.entityType,
		EntityID:        tc.entityID,
		Content:         content,
		Mentions:        mentions,
		ParentCommentID: parentCommentID,
	})
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	if lerr := tc.Load(ctx); lerr != nil {
		log.Warn().Err(lerr).Msg("reload after create failed")
	}
	return nil
}

// Update edits an existing comment, reloads, and only then exits edit mode
// for that comment. As with Create, a failed reload does not turn a
// successful update into an update failure.
func (tc *Controller) Update(ctx context.Context, commentID, content string, mentions []models.Mention) error {
	tc.mu.Lock()
	if tc.closed {
		tc.mu.Unlock()
		return nil
	}
	if tc.mutating {
		tc.mu.Unlock()
		return ErrMutationInFlight
	}
	tc.mutating = true
	tc.mu.Unlock()
	defer tc.clearMutating()

	_, err := tc.store.UpdateComment(ctx, commentID, models.UpdateCommentRequest{
		Content:  content,
		Mentions: mentions,
	})
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}

	if lerr := tc.Load(ctx); lerr != nil {
		log.Warn().Err(lerr).Msg("reload after update failed")
	}

	tc.mu.Lock()
	if tc.editing == commentID {
		tc.editing = ""
	}
	tc.mu.Unlock()
	return nil
}

// Delete routes through the host's confirmation dialog; the store delete runs
// only if the user explicitly confirms. A failed delete surfaces a generic
// error and leaves the node in place.
func (tc *Controller) Delete(ctx context.Context, commentID string) {
	tc.mu.Lock()
	if tc.closed || tc.mutating {
		tc.mu.Unlock()
		return
	}
	confirm := tc.confirm
	tc.mu.Unlock()

	confirm.RequestConfirm(ConfirmRequest{
		Title:       deleteConfirmTitle,
		Message:     deleteConfirmMessage,
		ConfirmText: "Delete",
		CancelText:  "Cancel",
		OnConfirm: func() {
			tc.performDelete(ctx, commentID)
		},
	})
}

func (tc *Controller) performDelete(ctx context.Context, commentID string) {
	tc.mu.Lock()
	if tc.closed || tc.mutating {
		tc.mu.Unlock()
		return
	}
	tc.mutating = true
	tc.delErr = ""
	tc.mu.Unlock()
	defer tc.clearMutating()

	if _, err := tc.store.DeleteComment(ctx, commentID, false); err != nil {
		log.Error().Err(err).Str("comment_id", commentID).Msg("failed to delete comment")
		tc.mu.Lock()
		tc.delErr = DeleteFailedMessage
		tc.mu.Unlock()
		return
	}

	if lerr := tc.Load(ctx); lerr != nil {
		log.Warn().Err(lerr).Msg("reload after delete failed")
	}

	tc.mu.Lock()
	if tc.editing == commentID {
		tc.editing = ""
	}
	tc.mu.Unlock()
}

func (tc *Controller) clearMutating() {
	tc.mu.Lock()
	tc.mutating = false
	tc.mu.Unlock()
}

// CanEdit reports whether the viewer may edit or delete the given comment:
// authorship is the only rule.
func (tc *Controller) CanEdit(c *models.Comment) bool {
	return c != nil && c.AuthorID == tc.viewer.ID
}

// StartEditing marks one comment as the thread's open editor. At most one
// comment is editable at a time; starting a new edit closes the previous one.
func (tc *Controller) StartEditing(commentID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.editing = commentID
}

// StopEditing closes the open editor, if any.
func (tc *Controller) StopEditing() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.editing = ""
}

// Viewer returns the identity the thread is rendered for.
func (tc *Controller) Viewer() models.User {
	return tc.viewer
}

// NewReplyComposer builds a composer whose submit creates a reply under the
// given parent (or a root comment when parentCommentID is nil).
func (tc *Controller) NewReplyComposer(parentCommentID *string, label string) *Composer {
	return NewComposer(ComposerConfig{
		Suggest:     tc.store,
		SubmitLabel: label,
		Submit: func(ctx context.Context, content string, mentions []models.Mention) error {
			return tc.Create(ctx, content, mentions, parentCommentID)
		},
	})
}

// NewEditComposer builds a composer pre-populated with an existing comment,
// whose submit updates it and whose cancel exits edit mode.
func (tc *Controller) NewEditComposer(c *models.Comment, label string) *Composer {
	return NewComposer(ComposerConfig{
		Suggest:         tc.store,
		SubmitLabel:     label,
		InitialText:     c.Content,
		InitialMentions: c.Mentions,
		OnCancel:        tc.StopEditing,
		Submit: func(ctx context.Context, content string, mentions []models.Mention) error {
			return tc.Update(ctx, c.ID, content, mentions)
		},
	})
}

// State returns a render-ready snapshot of the thread.
func (tc *Controller) State() ThreadState {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	return ThreadState{
		Phase:        tc.phase,
		Comments:     tc.comments,
		ErrorMessage: tc.errMsg,
		DeleteError:  tc.delErr,
		Loading:      tc.loading,
		Mutating:     tc.mutating,
		EditingID:    tc.editing,
	}
}

// Close tears the controller down; any in-flight load result is discarded
// instead of being applied to a dead view.
func (tc *Controller) Close() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.closed = true
	tc.gen++
}
