package thread

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceqa/pkg/models"
)

func TestRESTClientListComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/comments", r.URL.Path)
		assert.Equal(t, "test_case", r.URL.Query().Get("entity_type"))
		assert.Equal(t, "case-123", r.URL.Query().Get("entity_id"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]*models.Comment{
			{ID: "comment-1", Content: "Initial comment", Replies: []*models.Comment{
				{ID: "comment-2", Content: "Reply message"},
			}},
		})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "tok-1")
	comments, err := client.ListComments(context.Background(), "test_case", "case-123")

	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Initial comment", comments[0].Content)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "Reply message", comments[0].Replies[0].Content)
}

func TestRESTClientListCommentsRetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "tok-1")
	client.retry.BaseDelay = 0
	client.retry.Jitter = false
	client.retry.LogRetries = false

	comments, err := client.ListComments(context.Background(), "test_case", "case-123")

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Empty(t, comments)
}

func TestRESTClientCreateComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/comments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.CreateCommentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.Comment{ID: "new-id", Content: req.Content})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "tok-1")
	created, err := client.CreateComment(context.Background(), models.CreateCommentRequest{
		EntityType: "test_case",
		EntityID:   "case-123",
		Content:    "hello",
	})

	require.NoError(t, err)
	assert.Equal(t, "new-id", created.ID)
}

func TestRESTClientUpdateComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/comments/comment-1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.Comment{ID: "comment-1", Content: "edited", IsEdited: true})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "tok-1")
	updated, err := client.UpdateComment(context.Background(), "comment-1", models.UpdateCommentRequest{Content: "edited"})

	require.NoError(t, err)
	assert.True(t, updated.IsEdited)
}

func TestRESTClientDeleteComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/comments/comment-1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("force"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deleted": true}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "tok-1")
	deleted, err := client.DeleteComment(context.Background(), "comment-1", true)

	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestRESTClientSuggestMentions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/mentions/suggest", r.URL.Path)
		assert.Equal(t, "Bo", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]models.MentionSuggestion{
			{UserID: "user-2", DisplayName: "Bob Reviewer"},
		})
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "tok-1")
	suggestions, err := client.SuggestMentions(context.Background(), "Bo")

	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Bob Reviewer", suggestions[0].DisplayName)
}

func TestRESTClientSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, "tok-1")
	_, err := client.UpdateComment(context.Background(), "comment-1", models.UpdateCommentRequest{Content: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
