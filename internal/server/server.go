// Package server wires the application together and runs the HTTP server.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/surrealdb/surrealdb.go"

	"github.com/chatme-app/chatme/internal/chatstate"
	"github.com/chatme-app/chatme/internal/config"
	"github.com/chatme-app/chatme/internal/database"
	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/handlers"
	"github.com/chatme-app/chatme/internal/identity"
	"github.com/chatme-app/chatme/internal/logging"
	"github.com/chatme-app/chatme/internal/presence"
	"github.com/chatme-app/chatme/internal/pubsub"
	"github.com/chatme-app/chatme/internal/registry"
	"github.com/chatme-app/chatme/internal/router"
	"github.com/chatme-app/chatme/internal/storage"
	"github.com/chatme-app/chatme/internal/ws"
)

// Server holds the application's dependency graph.
type Server struct {
	E   *echo.Echo
	DB  *surrealdb.DB
	Cfg *config.Config

	queue      *pubsub.WatermillQueue
	registry   *registry.Registry
	bridge     *ws.Bridge
	aggregator *presence.Aggregator
	router     *router.Router
	identity   *identity.Service
	userStore  domain.UserRepository
}

// New builds a fully wired Server. Fatal configuration or connectivity
// problems end the process; there is nothing to serve without them.
func New() *Server {
	cfg := config.New()
	logging.New()

	ctx := context.Background()
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		slog.Error("Failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	users := database.NewUserStore(db)
	conns := database.NewConnectionStore(db)
	chats := database.NewChatStore(db)
	messages := database.NewMessageStore(db)

	store, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		slog.Error("Failed to initialize file storage", "error", err)
		os.Exit(1)
	}

	queue := pubsub.NewWatermillQueue()
	reg := registry.New(conns, users)
	bridge := ws.NewBridge()
	aggregator := presence.NewAggregator(reg, bridge,
		presence.WithDebounce(cfg.PresenceDebounce))
	updater := chatstate.New(chats)
	rtr := router.New(reg, chats, messages, users, updater, bridge, queue)
	idsvc := identity.New(users, cfg.JWTSecret, cfg.TokenTTL)

	if err := aggregator.Start(ctx, queue); err != nil {
		slog.Error("Failed to start presence aggregator", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())

	s := &Server{
		E:          e,
		DB:         db,
		Cfg:        cfg,
		queue:      queue,
		registry:   reg,
		bridge:     bridge,
		aggregator: aggregator,
		router:     rtr,
		identity:   idsvc,
		userStore:  users,
	}
	s.registerRoutes(store)
	return s
}

// UserStore is a getter for the server's user store, useful for testing
// and seed tooling.
func (s *Server) UserStore() domain.UserRepository {
	return s.userStore
}

// Identity is a getter for the identity service, useful for seed tooling.
func (s *Server) Identity() *identity.Service {
	return s.identity
}
