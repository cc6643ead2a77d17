package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/services"
)

// MessagingHandler exposes the conversation endpoints. Handlers stay thin:
// all orchestration lives in the conversation service.
type MessagingHandler struct {
	service *services.ConversationService
}

// NewMessagingHandler builds a MessagingHandler.
func NewMessagingHandler(service *services.ConversationService) *MessagingHandler {
	return &MessagingHandler{service: service}
}

// StartApplicationConversation gets or creates the conversation for a job
// application.
func (h *MessagingHandler) StartApplicationConversation(c *gin.Context) {
	applicationID, err := strconv.Atoi(c.Param("application_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application id"})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.service.GetOrCreateForApplication(c.Request.Context(), applicationID, userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// StartCompetitionConversation gets or creates the conversation for a
// competition registration.
func (h *MessagingHandler) StartCompetitionConversation(c *gin.Context) {
	competitionID, err := strconv.Atoi(c.Param("competition_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid competition id"})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.service.GetOrCreateForCompetition(c.Request.Context(), competitionID, userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ListConversations returns the caller's conversations, newest activity
// first.
func (h *MessagingHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")
	convs, err := h.service.ListConversationsFor(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetMessages returns the full ascending history of a conversation.
func (h *MessagingHandler) GetMessages(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.service.ListMessages(c.Request.Context(), conversationID, userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message and broadcasts it to the conversation room.
func (h *MessagingHandler) PostMessage(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.service.SendMessage(c.Request.Context(), conversationID, userID, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead resets the caller's unread state for a conversation.
func (h *MessagingHandler) MarkRead(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.service.MarkRead(c.Request.Context(), conversationID, userID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// UnreadCount returns the caller's total unread badge count.
func (h *MessagingHandler) UnreadCount(c *gin.Context) {
	userID := c.GetInt("userID")
	count, err := h.service.UnreadCountFor(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func conversationIDParam(c *gin.Context) (int, bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return conversationID, true
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	case errors.Is(err, apperrors.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, apperrors.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
