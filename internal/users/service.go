package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/voiceqa/pkg/models"
)

// ErrInvalidCredentials covers both unknown accounts and wrong passwords so
// login responses don't leak which one it was.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrNotFound is returned when a user id or email resolves to nothing.
var ErrNotFound = errors.New("user not found")

// DefaultSuggestionLimit caps mention lookups; a dropdown longer than this is
// noise.
const DefaultSuggestionLimit = 8

// Service provides user lookup, password authentication, and the mention
// suggestion search backing the autocomplete endpoint.
type Service struct {
	db *sql.DB
}

// NewService creates a new user service
func NewService(db *sql.DB) *Service {
	return &Service{
		db: db,
	}
}

// GetByID retrieves a user by id.
func (s *Service) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getBy(ctx, "id", userID)
}

// GetByEmail retrieves a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
	SELECT id, email, password_hash, display_name, avatar_url, is_active, last_login_at, created_at, updated_at
	FROM users
	WHERE %s = $1
	`, column)

	var u models.User
	var avatarURL sql.NullString
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &avatarURL,
		&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.AvatarURL = avatarURL.String
	return &u, nil
}

// Authenticate checks an email/password pair and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	_, err = s.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return user, nil
}

// HashPassword produces the bcrypt hash stored for a user's password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// SuggestMentions returns active users whose display name or email starts
// with the query, in display-name order, capped at limit. The dedupe happens
// naturally since each user is one row.
func (s *Service) SuggestMentions(ctx context.Context, query string, limit int) ([]models.MentionSuggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, avatar_url
		FROM users
		WHERE is_active = TRUE
		  AND (display_name ILIKE $1 || '%' OR email ILIKE $1 || '%')
		ORDER BY display_name ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var suggestions []models.MentionSuggestion
	for rows.Next() {
		var sug models.MentionSuggestion
		var avatarURL sql.NullString
		if err := rows.Scan(&sug.UserID, &sug.DisplayName, &sug.Email, &avatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		sug.AvatarURL = avatarURL.String
		suggestions = append(suggestions, sug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}
	return suggestions, nil
}
