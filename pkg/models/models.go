package models

import (
	"time"
)

// User represents an account that can author comments and be mentioned
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never expose password hash in JSON
	DisplayName  string     `json:"display_name" db:"display_name"`
	AvatarURL    string     `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Mention is a structured reference to a user embedded in a comment's content
// via an "@display_name" token. UserID is the only required field.
type Mention struct {
	UserID      string `json:"user_id" db:"user_id"`
	DisplayName string `json:"display_name,omitempty" db:"display_name"`
	Email       string `json:"email,omitempty" db:"email"`
	AvatarURL   string `json:"avatar_url,omitempty" db:"avatar_url"`
}

// MentionSuggestion is a candidate returned by the mention lookup endpoint.
// It converts 1:1 into a Mention when the user accepts it.
type MentionSuggestion struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ToMention converts an accepted suggestion into the Mention record stored
// alongside the comment.
func (s MentionSuggestion) ToMention() Mention {
	return Mention{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Email:       s.Email,
		AvatarURL:   s.AvatarURL,
	}
}

// Comment is one node of an entity's reply tree. Replies are pre-assembled by
// the store: a comment's Replies are exactly the comments whose
// ParentCommentID equals its own ID, in creation order.
type Comment struct {
	ID              string     `json:"id" db:"id"`
	EntityType      string     `json:"entity_type" db:"entity_type"`
	EntityID        string     `json:"entity_id" db:"entity_id"`
	ParentCommentID *string    `json:"parent_comment_id,omitempty" db:"parent_comment_id"`
	AuthorID        string     `json:"author_id" db:"author_id"`
	AuthorName      string     `json:"author_name" db:"author_name"`
	AvatarURL       string     `json:"avatar_url,omitempty" db:"avatar_url"`
	Content         string     `json:"content" db:"content"`
	Mentions        []Mention  `json:"mentions"`
	IsEdited        bool       `json:"is_edited" db:"is_edited"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	Replies         []*Comment `json:"replies"`
}

// CreateCommentRequest is the payload for creating a root comment or a reply.
type CreateCommentRequest struct {
	EntityType      string    `json:"entity_type"`
	EntityID        string    `json:"entity_id"`
	Content         string    `json:"content"`
	Mentions        []Mention `json:"mentions,omitempty"`
	ParentCommentID *string   `json:"parent_comment_id,omitempty"`
}

// UpdateCommentRequest is the payload for editing an existing comment.
// Mentions replace the comment's previous mention set wholesale.
type UpdateCommentRequest struct {
	Content  string    `json:"content"`
	Mentions []Mention `json:"mentions,omitempty"`
}

// LoginRequest is the payload for password authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued access token and the authenticated user.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"` // "Bearer"
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// MentionNotification records that a user was mentioned in a comment. Rows are
// written asynchronously by the notification worker and consumed by the
// notification panel, which polls rather than pushes.
type MentionNotification struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	CommentID  string     `json:"comment_id" db:"comment_id"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	ReadAt     *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
