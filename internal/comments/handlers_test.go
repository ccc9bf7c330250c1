package comments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceqa/internal/api/auth"
	"github.com/voiceqa/pkg/models"
)

type stubStore struct {
	comments map[string]*models.Comment
	tree     []*models.Comment

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	createdReq models.CreateCommentRequest
	deletedID  string
	forcedDel  bool
}

func (s *stubStore) ListThread(ctx context.Context, entityType, entityID string) ([]*models.Comment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tree, nil
}

func (s *stubStore) GetComment(ctx context.Context, commentID string) (*models.Comment, error) {
	c, ok := s.comments[commentID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *stubStore) CreateComment(ctx context.Context, req models.CreateCommentRequest, author models.User) (*models.Comment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createdReq = req
	return &models.Comment{
		ID:         "new-comment",
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		AuthorID:   author.ID,
		AuthorName: author.DisplayName,
		Content:    req.Content,
		Mentions:   req.Mentions,
		Replies:    []*models.Comment{},
	}, nil
}

func (s *stubStore) UpdateComment(ctx context.Context, commentID string, req models.UpdateCommentRequest) (*models.Comment, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	c, ok := s.comments[commentID]
	if !ok {
		return nil, ErrNotFound
	}
	updated := *c
	updated.Content = req.Content
	updated.IsEdited = true
	updated.Mentions = req.Mentions
	return &updated, nil
}

func (s *stubStore) DeleteComment(ctx context.Context, commentID string, force bool) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	s.deletedID = commentID
	s.forcedDel = force
	return true, nil
}

type stubDirectory struct {
	suggestions []models.MentionSuggestion
	err         error
	lastQuery   string
	calls       int
}

func (d *stubDirectory) SuggestMentions(ctx context.Context, query string, limit int) ([]models.MentionSuggestion, error) {
	d.calls++
	d.lastQuery = query
	return d.suggestions, d.err
}

type stubNotifier struct {
	notified []*models.Comment
	err      error
}

func (n *stubNotifier) NotifyMentions(ctx context.Context, comment *models.Comment) error {
	n.notified = append(n.notified, comment)
	return n.err
}

func testViewer() *models.User {
	return &models.User{ID: "user-1", Email: "alice@voiceqa.dev", DisplayName: "Alice Tester", IsActive: true}
}

func newTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set(auth.UserContextKey, testViewer())
	return c, rec
}

func TestListCommentsRequiresEntityParams(t *testing.T) {
	h := NewHandlers(&stubStore{}, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodGet, "/comments?entity_type=test_case", "")
	require.NoError(t, h.listComments(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCommentsReturnsTree(t *testing.T) {
	store := &stubStore{tree: []*models.Comment{
		{ID: "c1", Content: "root", Replies: []*models.Comment{{ID: "c2", Content: "reply", Replies: []*models.Comment{}}}},
	}}
	h := NewHandlers(store, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodGet, "/comments?entity_type=test_case&entity_id=case-1", "")
	require.NoError(t, h.listComments(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var tree []*models.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	require.Len(t, tree, 1)
	assert.Equal(t, "c2", tree[0].Replies[0].ID)
}

func TestListCommentsEmptyThreadIsEmptyArray(t *testing.T) {
	h := NewHandlers(&stubStore{}, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodGet, "/comments?entity_type=test_case&entity_id=case-1", "")
	require.NoError(t, h.listComments(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestCreateCommentRejectsBlankContent(t *testing.T) {
	store := &stubStore{}
	h := NewHandlers(store, &stubDirectory{}, nil, 8)

	body := `{"entity_type":"test_case","entity_id":"case-1","content":"   "}`
	c, rec := newTestContext(t, http.MethodPost, "/comments", body)
	require.NoError(t, h.createComment(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.createdReq.Content)
}

func TestCreateCommentTrimsAndNotifiesMentions(t *testing.T) {
	store := &stubStore{}
	notifier := &stubNotifier{}
	h := NewHandlers(store, &stubDirectory{}, notifier, 8)

	body := `{"entity_type":"test_case","entity_id":"case-1","content":"  hi @Bob Reviewer  ","mentions":[{"user_id":"user-2","display_name":"Bob Reviewer"}]}`
	c, rec := newTestContext(t, http.MethodPost, "/comments", body)
	require.NoError(t, h.createComment(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "hi @Bob Reviewer", store.createdReq.Content)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, "new-comment", notifier.notified[0].ID)
}

func TestCreateCommentNotifierFailureDoesNotFailRequest(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("queue down")}
	h := NewHandlers(&stubStore{}, &stubDirectory{}, notifier, 8)

	body := `{"entity_type":"test_case","entity_id":"case-1","content":"hi","mentions":[{"user_id":"user-2","display_name":"Bob Reviewer"}]}`
	c, rec := newTestContext(t, http.MethodPost, "/comments", body)
	require.NoError(t, h.createComment(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateCommentParentMismatch(t *testing.T) {
	h := NewHandlers(&stubStore{createErr: ErrParentMismatch}, &stubDirectory{}, nil, 8)

	body := `{"entity_type":"test_case","entity_id":"case-1","content":"hi","parent_comment_id":"c9"}`
	c, rec := newTestContext(t, http.MethodPost, "/comments", body)
	require.NoError(t, h.createComment(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCommentAuthorOnly(t *testing.T) {
	store := &stubStore{comments: map[string]*models.Comment{
		"c1": {ID: "c1", AuthorID: "someone-else", Content: "original"},
	}}
	h := NewHandlers(store, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodPut, "/comments/c1", `{"content":"hijack"}`)
	c.SetParamNames("id")
	c.SetParamValues("c1")
	require.NoError(t, h.updateComment(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateCommentSuccess(t *testing.T) {
	store := &stubStore{comments: map[string]*models.Comment{
		"c1": {ID: "c1", AuthorID: "user-1", Content: "original"},
	}}
	h := NewHandlers(store, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodPut, "/comments/c1", `{"content":"edited"}`)
	c.SetParamNames("id")
	c.SetParamValues("c1")
	require.NoError(t, h.updateComment(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "edited", updated.Content)
	assert.True(t, updated.IsEdited)
}

func TestUpdateCommentNotFound(t *testing.T) {
	h := NewHandlers(&stubStore{comments: map[string]*models.Comment{}}, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodPut, "/comments/missing", `{"content":"edited"}`)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	require.NoError(t, h.updateComment(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCommentAuthorOnly(t *testing.T) {
	store := &stubStore{comments: map[string]*models.Comment{
		"c1": {ID: "c1", AuthorID: "someone-else"},
	}}
	h := NewHandlers(store, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodDelete, "/comments/c1", "")
	c.SetParamNames("id")
	c.SetParamValues("c1")
	require.NoError(t, h.deleteComment(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, store.deletedID)
}

func TestDeleteCommentWithRepliesConflicts(t *testing.T) {
	store := &stubStore{
		comments:  map[string]*models.Comment{"c1": {ID: "c1", AuthorID: "user-1"}},
		deleteErr: ErrHasReplies,
	}
	h := NewHandlers(store, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodDelete, "/comments/c1", "")
	c.SetParamNames("id")
	c.SetParamValues("c1")
	require.NoError(t, h.deleteComment(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteCommentForcePassedThrough(t *testing.T) {
	store := &stubStore{comments: map[string]*models.Comment{
		"c1": {ID: "c1", AuthorID: "user-1"},
	}}
	h := NewHandlers(store, &stubDirectory{}, nil, 8)

	c, rec := newTestContext(t, http.MethodDelete, "/comments/c1?force=true", "")
	c.SetParamNames("id")
	c.SetParamValues("c1")
	require.NoError(t, h.deleteComment(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", store.deletedID)
	assert.True(t, store.forcedDel)
}

func TestSuggestMentionsShortQuerySkipsDirectory(t *testing.T) {
	directory := &stubDirectory{}
	h := NewHandlers(&stubStore{}, directory, nil, 8)

	c, rec := newTestContext(t, http.MethodGet, "/mentions/suggest?q=B", "")
	require.NoError(t, h.suggestMentions(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	assert.Zero(t, directory.calls)
}

func TestSuggestMentionsReturnsMatches(t *testing.T) {
	directory := &stubDirectory{suggestions: []models.MentionSuggestion{
		{UserID: "user-2", DisplayName: "Bob Reviewer", Email: "bob@voiceqa.dev"},
	}}
	h := NewHandlers(&stubStore{}, directory, nil, 8)

	c, rec := newTestContext(t, http.MethodGet, "/mentions/suggest?q=Bo", "")
	require.NoError(t, h.suggestMentions(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bo", directory.lastQuery)

	var got []models.MentionSuggestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Bob Reviewer", got[0].DisplayName)
}

func TestSuggestMentionsDirectoryErrorIs500(t *testing.T) {
	directory := &stubDirectory{err: errors.New("db down")}
	h := NewHandlers(&stubStore{}, directory, nil, 8)

	c, rec := newTestContext(t, http.MethodGet, "/mentions/suggest?q=Bo", "")
	require.NoError(t, h.suggestMentions(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
