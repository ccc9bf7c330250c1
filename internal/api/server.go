package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/voiceqa/internal/api/auth"
	"github.com/voiceqa/internal/comments"
	"github.com/voiceqa/internal/users"
	"github.com/voiceqa/pkg/models"
)

// Authenticator verifies a user's password credentials. The users service
// implements it.
type Authenticator interface {
	auth.UserResolver
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Server represents the API server
type Server struct {
	echo  *echo.Echo
	port  int
	users Authenticator
	token *auth.TokenService
}

// NewServer creates a new API server
func NewServer(port int, userService Authenticator, tokenService *auth.TokenService, commentHandlers *comments.Handlers) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:  e,
		port:  port,
		users: userService,
		token: tokenService,
	}

	server.setupRoutes(commentHandlers)

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(commentHandlers *comments.Handlers) {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// API v1 group
	v1 := s.echo.Group("/api/v1")
	v1.POST("/auth/login", s.login)

	// Everything under the authenticated group carries a Bearer token.
	authed := v1.Group("", auth.RequireAuth(s.token, s.users))
	commentHandlers.Register(authed)
}

func (s *Server) login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
	}

	user, err := s.users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
		}
		log.Error().Err(err).Msg("login failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Login failed"})
	}

	token, expiresAt, err := s.token.CreateAccessToken(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue access token")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Login failed"})
	}

	return c.JSON(http.StatusOK, models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        *user,
	})
}

// Start begins the API server and blocks until an interrupt triggers a
// graceful shutdown.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
