package thread

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/voiceqa/internal/retry"
	"github.com/voiceqa/pkg/models"
)

// RESTClient implements Store against the voiceqa comment API. It is the only
// place transport details live; everything above it deals in models.
type RESTClient struct {
	baseURL string
	token   string
	client  *http.Client
	retry   retry.Config
}

// NewRESTClient creates a client for the API at baseURL, authenticating every
// request with the given bearer token.
func NewRESTClient(baseURL, token string) *RESTClient {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}

	return &RESTClient{
		baseURL: fmt.Sprintf("%s/api/v1", baseURL),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.DefaultConfig(),
	}
}

// ListComments fetches the full nested tree for one entity. Reads are
// idempotent, so transient transport failures are retried with backoff;
// mutations below never are.
func (c *RESTClient) ListComments(ctx context.Context, entityType, entityID string) ([]*models.Comment, error) {
	requestURL := fmt.Sprintf("%s/comments?entity_type=%s&entity_id=%s",
		c.baseURL, url.QueryEscape(entityType), url.QueryEscape(entityID))

	var comments []*models.Comment
	result := retry.WithBackoff(ctx, c.retry, func() error {
		comments = nil
		return c.doJSON(ctx, http.MethodGet, requestURL, nil, &comments)
	})
	if !result.Success {
		return nil, fmt.Errorf("failed to list comments: %w", result.LastError)
	}
	return comments, nil
}

// CreateComment persists a new comment or reply.
func (c *RESTClient) CreateComment(ctx context.Context, req models.CreateCommentRequest) (*models.Comment, error) {
	var created models.Comment
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/comments", req, &created); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &created, nil
}

// UpdateComment replaces a comment's content and mentions.
func (c *RESTClient) UpdateComment(ctx context.Context, commentID string, req models.UpdateCommentRequest) (*models.Comment, error) {
	requestURL := fmt.Sprintf("%s/comments/%s", c.baseURL, url.PathEscape(commentID))

	var updated models.Comment
	if err := c.doJSON(ctx, http.MethodPut, requestURL, req, &updated); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return &updated, nil
}

// DeleteComment removes a comment; with force set, its replies go with it.
func (c *RESTClient) DeleteComment(ctx context.Context, commentID string, force bool) (bool, error) {
	requestURL := fmt.Sprintf("%s/comments/%s", c.baseURL, url.PathEscape(commentID))
	if force {
		requestURL += "?force=true"
	}

	var resp struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, requestURL, nil, &resp); err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}
	return resp.Deleted, nil
}

// SuggestMentions looks up mention candidates for a partial query.
func (c *RESTClient) SuggestMentions(ctx context.Context, query string) ([]models.MentionSuggestion, error) {
	requestURL := fmt.Sprintf("%s/mentions/suggest?q=%s", c.baseURL, url.QueryEscape(query))

	var suggestions []models.MentionSuggestion
	if err := c.doJSON(ctx, http.MethodGet, requestURL, nil, &suggestions); err != nil {
		return nil, fmt.Errorf("failed to fetch mention suggestions: %w", err)
	}
	return suggestions, nil
}

// doJSON issues one request with the JSON body in, decodes the JSON body out,
// and folds non-2xx statuses into errors. Response bodies of failed requests
// are drained so connections can be reused.
func (c *RESTClient) doJSON(ctx context.Context, method, requestURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(payload))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
