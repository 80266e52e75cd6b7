package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

var (
	ErrClientClosed = errors.New("client connection closed")
	ErrSlowClient   = errors.New("client send buffer full")
)

// WebSocketMessage is the envelope of every socket event.
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type authenticateData struct {
	UserID uint `json:"userId"`
}

type sendMessageData struct {
	SenderID   uint   `json:"senderId"`
	ReceiverID uint   `json:"receiverId"`
	ChatID     uint   `json:"chatId"`
	Content    string `json:"content"`
}

type typingData struct {
	SenderID   uint `json:"senderId"`
	ReceiverID uint `json:"receiverId"`
}

// Hub upgrades authenticated requests and wires each connection to the relay.
type Hub struct {
	relay      *Relay
	upgrader   websocket.Upgrader
	production bool
	log        logrus.FieldLogger
}

// Client is one websocket connection. It is the relay Handle of its user.
type Client struct {
	UserID uint
	Conn   *websocket.Conn

	hub       *Hub
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(relay *Relay, allowedOrigins []string, production bool, log logrus.FieldLogger) *Hub {
	return &Hub{
		relay:      relay,
		production: production,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades the request for userID, whose token was already checked.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		hub:    h,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	h.relay.Connect(r.Context(), userID, client)

	go client.writePump()
	go client.readPump()
}

// Send queues msg for the write pump without blocking.
func (c *Client) Send(msg WebSocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSlowClient
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.relay.Disconnect(context.Background(), c.UserID, c)
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.hub.relay.Refresh(context.Background(), c.UserID)
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithField("user_id", c.UserID).WithError(err).Warn("websocket read error")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(apperr.Validation("Malformed message"))
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.WithField("user_id", c.UserID).WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(msg inboundMessage) {
	ctx := context.Background()

	switch msg.Type {
	case EventAuthenticate:
		var d authenticateData
		if err := json.Unmarshal(msg.Data, &d); err != nil || d.UserID == 0 {
			c.sendError(apperr.Validation("userId is required"))
			return
		}
		if d.UserID != c.UserID {
			c.sendError(apperr.Authentication("userId does not match token"))
			return
		}
		c.Send(WebSocketMessage{Type: EventAuthenticated, Data: authenticateData{UserID: c.UserID}})

	case EventSendMessage:
		var d sendMessageData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			c.sendError(apperr.Validation("Malformed send_message payload"))
			return
		}
		if d.SenderID != 0 && d.SenderID != c.UserID {
			c.sendError(apperr.Authorization("senderId does not match the connected user"))
			return
		}
		var err error
		if d.ChatID != 0 {
			_, err = c.hub.relay.SendChatMessage(ctx, d.ChatID, c.UserID, d.Content)
		} else {
			_, err = c.hub.relay.SendMessage(ctx, c.UserID, d.ReceiverID, d.Content)
		}
		if err != nil {
			c.sendError(err)
		}

	case EventTyping:
		var d typingData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			return
		}
		c.hub.relay.Typing(ctx, c.UserID, d.ReceiverID)

	default:
		c.sendError(apperr.Validation("Unknown event type: " + msg.Type))
	}
}

func (c *Client) sendError(err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		c.hub.log.WithField("user_id", c.UserID).WithError(err).Error("websocket event failed")
	}
	c.Send(WebSocketMessage{
		Type: EventError,
		Data: ErrorPayload{Message: apperr.PublicMessage(err, c.hub.production)},
	})
}
