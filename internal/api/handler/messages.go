package handler

import (
	"errors"
	"net/http"
	"time"

	"pulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content"`
}

// GetConversations returns the caller's conversation summaries, newest
// activity first.
func (h *Handler) GetConversations(c *gin.Context) {
	summaries, err := h.Conversations.Summaries(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// Thread returns the message history with one counterpart, oldest first,
// and marks the received side read while it is at it. Opening a thread is
// reading it.
func (h *Handler) Thread(c *gin.Context) {
	me := currentUserID(c)
	counterpart := c.Param("userID")

	msgs, err := h.Storage.Thread(me, counterpart, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	affected, err := h.Storage.MarkThreadRead(me, counterpart)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if affected > 0 {
		h.Hub.PublishRead(me, counterpart)
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send persists a message over plain HTTP — the path for clients without a
// live connection — and pushes the same live events the socket path does.
func (h *Handler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver_id and content are required"})
		return
	}

	msg, err := h.Storage.AppendMessage(currentUserID(c), req.ReceiverID, req.Content)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	h.Hub.PublishMessage(msg)
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkThreadRead flips the unread flags from one counterpart and announces
// the read receipt to the open room.
func (h *Handler) MarkThreadRead(c *gin.Context) {
	me := currentUserID(c)
	counterpart := c.Param("userID")

	affected, err := h.Storage.MarkThreadRead(me, counterpart)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if affected > 0 {
		h.Hub.PublishRead(me, counterpart)
	}

	c.JSON(http.StatusOK, gin.H{"marked": affected})
}

// UserStatus reports a user's presence: online flag plus last-seen when
// offline.
func (h *Handler) UserStatus(c *gin.Context) {
	userID := c.Param("userID")

	online, err := h.Storage.IsOnline(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	resp := gin.H{"user_id": userID, "online": online}
	if !online {
		lastSeen, err := h.Storage.LastSeen(userID)
		if err == nil && !lastSeen.IsZero() {
			resp["last_seen"] = lastSeen.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, resp)
}
