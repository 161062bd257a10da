package server

import (
	"github.com/chatme-app/chatme/internal/database"
	"github.com/chatme-app/chatme/internal/handlers"
	"github.com/chatme-app/chatme/internal/middleware"
	"github.com/chatme-app/chatme/internal/storage"
)

// registerRoutes sets up all the application routes.
func (s *Server) registerRoutes(store storage.Store) {
	authHandler := handlers.NewAuthHandler(s.identity)
	userHandler := handlers.NewUserHandler(s.userStore, store)
	chatHandler := handlers.NewChatHandler(
		database.NewChatStore(s.DB),
		database.NewMessageStore(s.DB),
		s.userStore,
		s.router,
	)
	presenceHandler := handlers.NewPresenceHandler(s.aggregator)

	auth := middleware.Auth(s.identity)
	rateLimiter := middleware.RateLimiter(5)

	s.E.GET("/health", handlers.HealthCheck)

	s.E.POST("/auth/signup", authHandler.SignUp, rateLimiter)
	s.E.POST("/auth/signin", authHandler.SignIn, rateLimiter)

	s.E.GET("/users", userHandler.List, auth, middleware.Logger)
	s.E.GET("/users/me", userHandler.Me, auth, middleware.Logger)
	s.E.PUT("/users/me", userHandler.UpdateMe, auth, middleware.Logger)
	s.E.GET("/users/:id", userHandler.Get, auth, middleware.Logger)
	s.E.GET("/users/:id/picture", userHandler.Picture, auth, middleware.Logger)

	s.E.GET("/chats", chatHandler.List, auth, middleware.Logger)
	s.E.POST("/chats", chatHandler.Start, auth, middleware.Logger)
	s.E.GET("/chats/:chatId/messages", chatHandler.Messages, auth, middleware.Logger)

	s.E.GET("/presence", presenceHandler.GetOnlineUsers, auth, middleware.Logger)

	s.E.GET("/ws", s.bridge.Handler(s.router), auth)
}
