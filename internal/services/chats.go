package services

import (
	"context"
	"errors"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
)

const (
	DefaultConversationLimit = 50
	MaxConversationLimit     = 200
)

// ChatService covers property chats and direct messages over HTTP. Sending
// goes through the relay so connected users get the push.
type ChatService struct {
	store *store.Store
	relay *Relay
}

func NewChatService(s *store.Store, relay *Relay) *ChatService {
	return &ChatService{store: s, relay: relay}
}

// Start returns the chat between the caller and the owner of propertyID,
// creating it on first contact.
func (s *ChatService) Start(ctx context.Context, buyerID, propertyID uint) (*models.Chat, error) {
	property, err := s.store.GetProperty(ctx, propertyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Property not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load property", err)
	}
	if property.OwnerID == buyerID {
		return nil, apperr.Conflict("Cannot start a chat about your own property")
	}

	chat, err := s.store.GetOrCreateChat(ctx, buyerID, property.OwnerID, property.ID)
	if err != nil {
		return nil, apperr.Internal("failed to open chat", err)
	}
	return chat, nil
}

func (s *ChatService) List(ctx context.Context, userID uint) ([]models.Chat, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list chats", err)
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return chats, nil
}

func (s *ChatService) participantChat(ctx context.Context, chatID, userID uint) (*models.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Chat not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load chat", err)
	}
	if !chat.IsParticipant(userID) {
		return nil, apperr.Authorization("You are not part of this chat")
	}
	return chat, nil
}

// Messages returns the chat history and marks the other side's messages read.
func (s *ChatService) Messages(ctx context.Context, chatID, userID uint) ([]models.ChatMessage, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListChatMessages(ctx, chatID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load messages", err)
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, nil
}

func (s *ChatService) Send(ctx context.Context, chatID, senderID uint, content string) (*models.ChatMessage, error) {
	return s.relay.SendChatMessage(ctx, chatID, senderID, content)
}

func (s *ChatService) SendDirect(ctx context.Context, senderID, receiverID uint, content string) (*models.DirectMessage, error) {
	if _, err := s.store.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Receiver not found")
		}
		return nil, apperr.Internal("failed to load receiver", err)
	}
	return s.relay.SendMessage(ctx, senderID, receiverID, content)
}

// Inbox pages through messages received by userID, newest first. Returned
// messages are marked read.
func (s *ChatService) Inbox(ctx context.Context, userID uint, page utils.Pagination) ([]models.DirectMessage, utils.PageMeta, error) {
	messages, total, err := s.store.Inbox(ctx, userID, page)
	if err != nil {
		return nil, utils.PageMeta{}, apperr.Internal("failed to load inbox", err)
	}
	if messages == nil {
		messages = []models.DirectMessage{}
	}
	return messages, utils.NewPageMeta(page, total), nil
}

// Conversation returns the latest messages exchanged by two users, oldest first.
func (s *ChatService) Conversation(ctx context.Context, userID, otherID uint, limit int) ([]models.DirectMessage, error) {
	if otherID == 0 || otherID == userID {
		return nil, apperr.Validation("invalid conversation partner")
	}
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	if limit > MaxConversationLimit {
		limit = MaxConversationLimit
	}
	messages, err := s.store.Conversation(ctx, userID, otherID, limit)
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	if messages == nil {
		messages = []models.DirectMessage{}
	}
	return messages, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	n, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count unread messages", err)
	}
	return n, nil
}
