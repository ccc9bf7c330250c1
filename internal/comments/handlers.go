package comments

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/voiceqa/internal/api/auth"
	"github.com/voiceqa/pkg/models"
)

// minSuggestQuery mirrors the client-side gate: shorter queries get an empty
// list without touching the directory.
const minSuggestQuery = 2

// CommentStore is the storage surface the handlers need. *Storage implements
// it; handler tests substitute stubs.
type CommentStore interface {
	ListThread(ctx context.Context, entityType, entityID string) ([]*models.Comment, error)
	GetComment(ctx context.Context, commentID string) (*models.Comment, error)
	CreateComment(ctx context.Context, req models.CreateCommentRequest, author models.User) (*models.Comment, error)
	UpdateComment(ctx context.Context, commentID string, req models.UpdateCommentRequest) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID string, force bool) (bool, error)
}

// MentionDirectory backs the autocomplete endpoint.
type MentionDirectory interface {
	SuggestMentions(ctx context.Context, query string, limit int) ([]models.MentionSuggestion, error)
}

// Notifier fans mention notifications out after a comment lands. Enqueueing
// is best-effort: a notification failure never fails the mutation.
type Notifier interface {
	NotifyMentions(ctx context.Context, comment *models.Comment) error
}

// Handlers wires the comment routes to storage, the user directory, and the
// notification queue.
type Handlers struct {
	store          CommentStore
	directory      MentionDirectory
	notifier       Notifier
	suggestLimiter *rate.Limiter
	suggestLimit   int
}

// NewHandlers creates the comment API handlers. The suggest endpoint is
// rate-limited as a whole since it fires on keystrokes.
func NewHandlers(store CommentStore, directory MentionDirectory, notifier Notifier, suggestLimit int) *Handlers {
	return &Handlers{
		store:          store,
		directory:      directory,
		notifier:       notifier,
		suggestLimiter: rate.NewLimiter(rate.Limit(20), 40),
		suggestLimit:   suggestLimit,
	}
}

// Register attaches the comment routes to an authenticated route group.
func (h *Handlers) Register(g *echo.Group) {
	g.GET("/comments", h.listComments)
	g.POST("/comments", h.createComment)
	g.PUT("/comments/:id", h.updateComment)
	g.DELETE("/comments/:id", h.deleteComment)
	g.GET("/mentions/suggest", h.suggestMentions)
}

func (h *Handlers) listComments(c echo.Context) error {
	entityType := c.QueryParam("entity_type")
	entityID := c.QueryParam("entity_id")
	if entityType == "" || entityID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "entity_type and entity_id are required",
		})
	}

	tree, err := h.store.ListThread(c.Request().Context(), entityType, entityID)
	if err != nil {
		log.Error().Err(err).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("failed to list comments")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to load comments",
		})
	}
	if tree == nil {
		tree = []*models.Comment{}
	}
	return c.JSON(http.StatusOK, tree)
}

func (h *Handlers) createComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Comment content is required"})
	}
	if req.EntityType == "" || req.EntityID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "entity_type and entity_id are required"})
	}

	user := auth.CurrentUser(c)
	created, err := h.store.CreateComment(c.Request().Context(), req, *user)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Parent comment not found"})
		case errors.Is(err, ErrParentMismatch):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Parent comment belongs to a different entity"})
		}
		log.Error().Err(err).Msg("failed to create comment")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create comment"})
	}

	h.notifyMentions(c.Request().Context(), created)
	return c.JSON(http.StatusCreated, created)
}

func (h *Handlers) updateComment(c echo.Context) error {
	commentID := c.Param("id")

	existing, err := h.store.GetComment(c.Request().Context(), commentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Comment not found"})
		}
		log.Error().Err(err).Str("comment_id", commentID).Msg("failed to load comment for update")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update comment"})
	}

	user := auth.CurrentUser(c)
	if existing.AuthorID != user.ID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Only the author can edit a comment"})
	}

	var req models.UpdateCommentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Comment content is required"})
	}

	updated, err := h.store.UpdateComment(c.Request().Context(), commentID, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Comment not found"})
		}
		log.Error().Err(err).Str("comment_id", commentID).Msg("failed to update comment")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update comment"})
	}

	h.notifyMentions(c.Request().Context(), updated)
	return c.JSON(http.StatusOK, updated)
}

func (h *Handlers) deleteComment(c echo.Context) error {
	commentID := c.Param("id")
	force := c.QueryParam("force") == "true"

	existing, err := h.store.GetComment(c.Request().Context(), commentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Comment not found"})
		}
		log.Error().Err(err).Str("comment_id", commentID).Msg("failed to load comment for delete")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete comment"})
	}

	user := auth.CurrentUser(c)
	if existing.AuthorID != user.ID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Only the author can delete a comment"})
	}

	deleted, err := h.store.DeleteComment(c.Request().Context(), commentID, force)
	if err != nil {
		switch {
		case errors.Is(err, ErrHasReplies):
			return c.JSON(http.StatusConflict, map[string]string{"error": "Comment has replies; pass force=true to delete the whole subtree"})
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Comment not found"})
		}
		log.Error().Err(err).Str("comment_id", commentID).Msg("failed to delete comment")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete comment"})
	}

	return c.JSON(http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handlers) suggestMentions(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if len(query) < minSuggestQuery {
		return c.JSON(http.StatusOK, []models.MentionSuggestion{})
	}

	if !h.suggestLimiter.Allow() {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many suggestion requests"})
	}

	suggestions, err := h.directory.SuggestMentions(c.Request().Context(), query, h.suggestLimit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("failed to look up mention suggestions")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to look up suggestions"})
	}
	if suggestions == nil {
		suggestions = []models.MentionSuggestion{}
	}
	return c.JSON(http.StatusOK, suggestions)
}

// notifyMentions enqueues notification fan-out for a freshly created or
// edited comment. Failures are logged and swallowed.
func (h *Handlers) notifyMentions(ctx context.Context, comment *models.Comment) {
	if h.notifier == nil || len(comment.Mentions) == 0 {
		return
	}
	if err := h.notifier.NotifyMentions(ctx, comment); err != nil {
		log.Warn().Err(err).Str("comment_id", comment.ID).Msg("failed to enqueue mention notifications")
	}
}
