package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/sirupsen/logrus"
)

// Socket event types
const (
	EventAuthenticate     = "authenticate"
	EventAuthenticated    = "authenticated"
	EventSendMessage      = "send_message"
	EventReceiveMessage   = "receive_message"
	EventMessageSent      = "message_sent"
	EventTyping           = "typing"
	EventUserTyping       = "user_typing"
	EventUserStatusChange = "user_status_change"
	EventNotification     = "notification"
	EventError            = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	MaxMessageLength = 2000
)

type MessagePayload struct {
	ID         uint      `json:"id"`
	ChatID     uint      `json:"chatId,omitempty"`
	SenderID   uint      `json:"senderId"`
	ReceiverID uint      `json:"receiverId"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	Timestamp  time.Time `json:"timestamp"`
}

type TypingPayload struct {
	SenderID   uint `json:"senderId"`
	ReceiverID uint `json:"receiverId"`
}

type StatusPayload struct {
	UserID uint   `json:"userId"`
	Status string `json:"status"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// PresenceDirectory shares presence and delivery across server processes.
type PresenceDirectory interface {
	MarkOnline(ctx context.Context, userID uint) error
	MarkOffline(ctx context.Context, userID uint) error
	IsOnline(ctx context.Context, userID uint) (bool, error)
	Publish(ctx context.Context, userID uint, msg WebSocketMessage) error
}

// Relay persists messages and pushes them to whoever is connected.
type Relay struct {
	registry  PresenceRegistry
	messages  store.Messages
	chats     store.Chats
	directory PresenceDirectory
	notifier  Notifier
	log       logrus.FieldLogger
}

func NewRelay(registry PresenceRegistry, messages store.Messages, chats store.Chats, log logrus.FieldLogger) *Relay {
	return &Relay{registry: registry, messages: messages, chats: chats, log: log}
}

// WithDirectory enables delivery to users connected to other processes.
func (r *Relay) WithDirectory(d PresenceDirectory) *Relay {
	r.directory = d
	return r
}

// WithNotifier sets the channel used for messages nobody is online to receive.
func (r *Relay) WithNotifier(n Notifier) *Relay {
	r.notifier = n
	return r
}

// Connect makes h the live handle of userID. A handle it replaces is closed.
func (r *Relay) Connect(ctx context.Context, userID uint, h Handle) {
	if previous := r.registry.Set(userID, h); previous != nil && previous != h {
		previous.Close()
	}
	if r.directory != nil {
		if err := r.directory.MarkOnline(ctx, userID); err != nil {
			r.log.WithField("user_id", userID).WithError(err).Warn("failed to publish presence")
		}
	}
	r.log.WithField("user_id", userID).Debug("user connected")
}

// Refresh renews the shared presence entry of a connected user.
func (r *Relay) Refresh(ctx context.Context, userID uint) {
	if r.directory == nil {
		return
	}
	if err := r.directory.MarkOnline(ctx, userID); err != nil {
		r.log.WithField("user_id", userID).WithError(err).Debug("failed to refresh presence")
	}
}

// Disconnect drops h if it is still the live handle of userID and tells every
// other connected user once. It reports whether anything was removed.
func (r *Relay) Disconnect(ctx context.Context, userID uint, h Handle) bool {
	if !r.registry.Remove(userID, h) {
		return false
	}
	if r.directory != nil {
		if err := r.directory.MarkOffline(ctx, userID); err != nil {
			r.log.WithField("user_id", userID).WithError(err).Warn("failed to clear presence")
		}
	}

	status := WebSocketMessage{
		Type: EventUserStatusChange,
		Data: StatusPayload{UserID: userID, Status: StatusOffline},
	}
	for _, other := range r.registry.Others(userID) {
		if err := other.Send(status); err != nil {
			r.log.WithError(err).Debug("status broadcast skipped a handle")
		}
	}
	r.log.WithField("user_id", userID).Debug("user disconnected")
	return true
}

// Online reports whether userID has a live handle here or elsewhere.
func (r *Relay) Online(ctx context.Context, userID uint) bool {
	if r.registry.Online(userID) {
		return true
	}
	if r.directory == nil {
		return false
	}
	online, err := r.directory.IsOnline(ctx, userID)
	if err != nil {
		r.log.WithField("user_id", userID).WithError(err).Debug("presence lookup failed")
		return false
	}
	return online
}

// ConnectedCount is the number of users connected to this process.
func (r *Relay) ConnectedCount() int {
	return r.registry.Count()
}

// push delivers msg to userID if connected. Failures are logged, never returned.
func (r *Relay) push(ctx context.Context, userID uint, msg WebSocketMessage) bool {
	if h, ok := r.registry.Get(userID); ok {
		if err := h.Send(msg); err != nil {
			r.log.WithFields(logrus.Fields{"user_id": userID, "type": msg.Type}).
				WithError(err).Warn("push failed, closing connection")
			h.Close()
			return false
		}
		return true
	}

	if r.directory == nil {
		return false
	}
	online, err := r.directory.IsOnline(ctx, userID)
	if err != nil || !online {
		return false
	}
	if err := r.directory.Publish(ctx, userID, msg); err != nil {
		r.log.WithField("user_id", userID).WithError(err).Warn("remote push failed")
		return false
	}
	return true
}

// DeliverLocal pushes a message received from another process to a handle on
// this one.
func (r *Relay) DeliverLocal(userID uint, msg WebSocketMessage) {
	h, ok := r.registry.Get(userID)
	if !ok {
		return
	}
	if err := h.Send(msg); err != nil {
		r.log.WithField("user_id", userID).WithError(err).Warn("push failed, closing connection")
		h.Close()
	}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", apperr.Validation("content is too long")
	}
	return content, nil
}

// SendMessage stores a direct message, then pushes it to the receiver and
// acknowledges the sender.
func (r *Relay) SendMessage(ctx context.Context, senderID, receiverID uint, content string) (*models.DirectMessage, error) {
	if receiverID == 0 {
		return nil, apperr.Validation("receiverId is required")
	}
	if receiverID == senderID {
		return nil, apperr.Validation("Cannot send a message to yourself")
	}
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	msg := &models.DirectMessage{SenderID: senderID, ReceiverID: receiverID, Content: content}
	if err := r.messages.SaveDirectMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to save message", err)
	}

	payload := MessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		Timestamp:  msg.CreatedAt,
	}
	r.deliver(ctx, receiverID, senderID, payload)
	return msg, nil
}

// SendChatMessage stores a message in a property chat and pushes it to the
// other participant.
func (r *Relay) SendChatMessage(ctx context.Context, chatID, senderID uint, content string) (*models.ChatMessage, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	chat, err := r.chats.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Chat not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load chat", err)
	}
	if !chat.IsParticipant(senderID) {
		return nil, apperr.Authorization("You are not part of this chat")
	}

	msg := &models.ChatMessage{ChatID: chat.ID, SenderID: senderID, Content: content}
	if err := r.chats.AddChatMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to save message", err)
	}

	receiverID := chat.Counterpart(senderID)
	payload := MessagePayload{
		ID:         msg.ID,
		ChatID:     chat.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    msg.Content,
		Timestamp:  msg.CreatedAt,
	}
	r.deliver(ctx, receiverID, senderID, payload)
	return msg, nil
}

func (r *Relay) deliver(ctx context.Context, receiverID, senderID uint, payload MessagePayload) {
	delivered := r.push(ctx, receiverID, WebSocketMessage{Type: EventReceiveMessage, Data: payload})
	r.push(ctx, senderID, WebSocketMessage{Type: EventMessageSent, Data: payload})

	if !delivered {
		notify(ctx, r.notifier, r.log, receiverID, Notification{
			Type:  NotificationNewMessage,
			Title: "New message",
			Body:  preview(payload.Content),
			Path:  "/messages",
			Data:  map[string]string{"senderId": fmt.Sprint(senderID)},
		})
	}
}

// Typing forwards a typing indicator if the receiver is connected. Nothing is
// stored.
func (r *Relay) Typing(ctx context.Context, senderID, receiverID uint) {
	if receiverID == 0 || receiverID == senderID {
		return
	}
	r.push(ctx, receiverID, WebSocketMessage{
		Type: EventUserTyping,
		Data: TypingPayload{SenderID: senderID, ReceiverID: receiverID},
	})
}

// Notify satisfies Notifier by pushing the notification over the socket.
func (r *Relay) Notify(ctx context.Context, userID uint, n Notification) error {
	if n.Type == NotificationNewMessage {
		return nil
	}
	r.push(ctx, userID, WebSocketMessage{Type: EventNotification, Data: n})
	return nil
}

func preview(content string) string {
	const max = 80
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	return string([]rune(content)[:max]) + "…"
}
