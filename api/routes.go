package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telechat/bridge/metrics"
	"github.com/telechat/bridge/services"
)

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Email and password are required",
		})
		return
	}

	if err := s.service.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Message: fmt.Sprintf("Failed to login: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    s.service.Status(),
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.service.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Message: fmt.Sprintf("Failed to logout: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Logged out",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    s.service.Status(),
	})
}

func (s *Server) handleGetChats(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    s.service.Chats(),
	})
}

func (s *Server) handleSelectChat(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ContactID == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "contact_id is required",
		})
		return
	}

	chat, err := s.service.SelectChat(c.Request.Context(), req.ContactID)
	if err != nil {
		c.JSON(statusFor(err), Response{
			Success: false,
			Message: fmt.Sprintf("Failed to select chat: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    chat,
	})
}

func (s *Server) handleGetMessages(c *gin.Context) {
	contactID := c.Query("contact")
	if contactID == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Missing contact parameter",
		})
		return
	}

	messages, err := s.service.Messages(contactID)
	if err != nil {
		c.JSON(statusFor(err), Response{
			Success: false,
			Message: fmt.Sprintf("Failed to get messages: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    messages,
	})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	if req.ContactID == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "contact_id is required",
		})
		return
	}

	if err := s.service.SendMessage(c.Request.Context(), req.ContactID, req.Content); err != nil {
		c.JSON(statusFor(err), Response{
			Success: false,
			Message: fmt.Sprintf("Failed to send message: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Message sent successfully",
	})
}

func (s *Server) handleAddContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ContactID == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "contact_id is required",
		})
		return
	}

	if err := s.service.AddContact(c.Request.Context(), req.ContactID); err != nil {
		c.JSON(statusFor(err), Response{
			Success: false,
			Message: fmt.Sprintf("Failed to add contact: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Contact added",
	})
}

// handleSearch serves typeahead queries. Requests are debounced: when a newer
// query arrives within the window, the superseded request answers 204 and
// only the newest one reaches the backend.
func (s *Server) handleSearch(c *gin.Context) {
	results, err := s.service.SearchUsersDebounced(c.Request.Context(), c.Query("q"))
	if err != nil {
		if errors.Is(err, services.ErrSearchSuperseded) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(statusFor(err), Response{
			Success: false,
			Message: fmt.Sprintf("Failed to search users: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    results,
	})
}

func (s *Server) handleFocus(c *gin.Context) {
	s.service.Focus(c.Request.Context())
	c.JSON(http.StatusOK, Response{Success: true})
}

func (s *Server) handleBlur(c *gin.Context) {
	s.service.Blur(c.Request.Context())
	c.JSON(http.StatusOK, Response{Success: true})
}

// handleOffline receives the fire-and-forget teardown beacon. It always
// answers 202: the sender is gone and never reads the response.
func (s *Server) handleOffline(c *gin.Context) {
	var req OfflineRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.UserID != "" {
		s.service.Offline(c.Request.Context(), req.UserID)
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) handleMetrics() gin.HandlerFunc {
	return gin.WrapH(metrics.Handler())
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnknownContact):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
