package handlers

import (
	"net/http"
	"strconv"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type StartChatInput struct {
	PropertyID uint `json:"propertyId" binding:"required"`
}

type ChatMessageInput struct {
	Content string `json:"content" binding:"required"`
}

type DirectMessageInput struct {
	ReceiverID uint   `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// StartChat opens (or reopens) the chat with a property's owner.
func StartChat(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input StartChatInput
		if !bindJSON(c, &input) {
			return
		}
		chat, err := chats.Start(c.Request.Context(), currentUserID(c), input.PropertyID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chat": chat})
	}
}

func ListChats(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := chats.List(c.Request.Context(), currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chats": list})
	}
}

func GetChatMessages(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		messages, err := chats.Messages(c.Request.Context(), id, currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	}
}

func SendChatMessage(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var input ChatMessageInput
		if !bindJSON(c, &input) {
			return
		}
		message, err := chats.Send(c.Request.Context(), id, currentUserID(c), input.Content)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": message})
	}
}

// SendDirectMessage stores a message for receiverId and pushes it if they are online.
func SendDirectMessage(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input DirectMessageInput
		if !bindJSON(c, &input) {
			return
		}
		message, err := chats.SendDirect(c.Request.Context(), currentUserID(c), input.ReceiverID, input.Content)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": message})
	}
}

// GetInbox pages through received messages, newest first. The returned page is marked read.
func GetInbox(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		messages, meta, err := chats.Inbox(c.Request.Context(), currentUserID(c), page)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, pageResponse{Data: messages, Pagination: meta})
	}
}

func GetConversation(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		otherID, ok := uintParam(c, "userId")
		if !ok {
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.Error(apperr.Validation("limit must be a positive integer"))
				return
			}
			limit = n
		}
		messages, err := chats.Conversation(c.Request.Context(), currentUserID(c), otherID, limit)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	}
}

func GetUnreadCount(chats *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := chats.UnreadCount(c.Request.Context(), currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unreadCount": n})
	}
}

// GetPresence reports whether userId holds a live connection on any instance.
func GetPresence(relay *services.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := uintParam(c, "userId")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"userId": userID,
			"online": relay.Online(c.Request.Context(), userID),
		})
	}
}
