package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telechat/bridge/services"
)

// Server represents the API handler
type Server struct {
	service services.Service
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(service services.Service, port string) *Server {
	router := gin.Default()

	return &Server{
		service: service,
		router:  router,
		server: &http.Server{
			Addr:    ":" + port,
			Handler: router,
		},
	}
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SendMessageRequest represents the request body for sending messages
type SendMessageRequest struct {
	ContactID string `json:"contact_id"`
	Content   string `json:"content"`
}

// ContactRequest represents the request body for contact and selection routes
type ContactRequest struct {
	ContactID string `json:"contact_id"`
}

// OfflineRequest represents the teardown beacon payload
type OfflineRequest struct {
	UserID string `json:"user_id"`
}

// Response represents a generic API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/login", s.handleLogin)
		api.POST("/logout", s.handleLogout)
		api.GET("/status", s.handleStatus)
		api.GET("/chats", s.handleGetChats)
		api.POST("/chats/select", s.handleSelectChat)
		api.GET("/messages", s.handleGetMessages)
		api.POST("/send", s.handleSendMessage)
		api.POST("/contacts", s.handleAddContact)
		api.GET("/search", s.handleSearch)
		api.POST("/presence/focus", s.handleFocus)
		api.POST("/presence/blur", s.handleBlur)
		api.POST("/offline", s.handleOffline)
	}

	router.GET("/metrics", s.handleMetrics())
}

func (s *Server) Start() error {
	s.registerRoutes(s.router)

	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
