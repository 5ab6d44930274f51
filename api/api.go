package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/grove/pkg/logger"
	"github.com/papercomputeco/grove/pkg/session"
	"github.com/papercomputeco/grove/pkg/turn"
)

// Server is the API server for one grove session.
type Server struct {
	config  Config
	session *session.Session
	turns   *turn.Orchestrator
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server. The session and orchestrator are
// injected so the caller owns their lifecycle.
func NewServer(config Config, sess *session.Session, turns *turn.Orchestrator, log *slog.Logger) (*Server, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}
	if turns == nil {
		return nil, errors.New("turn orchestrator is required")
	}

	// Route params and bodies outlive the request: ids end up in the tree and
	// on the session error channel.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config:  config,
		session: sess,
		turns:   turns,
		logger:  logger.OrNop(log),
		app:     app,
	}

	app.Get("/ping", s.handlePing)

	app.Get("/tree", s.handleGetTree)
	app.Get("/tree/path/:id", s.handleGetPath)
	app.Post("/turns", s.handleSubmitTurn)

	app.Post("/nodes/:id/select", s.handleSelectNode)
	app.Delete("/nodes/:id", s.handleDeleteNode)
	app.Post("/nodes/:id/comments", s.handleAddComment)
	app.Delete("/nodes/:id/comments/:commentId", s.handleDeleteComment)

	app.Get("/conversations", s.handleListConversations)
	app.Post("/conversations", s.handleCreateConversation)
	app.Post("/conversations/:id/switch", s.handleSwitchConversation)

	app.Put("/identity", s.handleSignIn)
	app.Delete("/identity", s.handleSignOut)
	app.Post("/flush", s.handleFlush)

	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
