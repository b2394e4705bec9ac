package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatter/internal/domain"
	"github.com/vedran77/chatter/internal/metrics"
	"github.com/vedran77/chatter/internal/service"
	"github.com/vedran77/chatter/pkg/validator"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256
)

// Client represents a single authenticated WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	user *domain.User
	chat *service.ChatService

	// rooms tracks derived conversation-room memberships.
	rooms map[string]struct{}
	mu    sync.RWMutex

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, user *domain.User, chat *service.ChatService) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		user:  user,
		chat:  chat,
		rooms: make(map[string]struct{}),
		send:  make(chan []byte, sendBufSize),
		done:  make(chan struct{}),
	}
}

// InRoom checks membership of a derived conversation room.
func (c *Client) InRoom(roomKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[roomKey]
	return ok
}

// JoinRoom adds a room membership.
func (c *Client) JoinRoom(roomKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[roomKey] = struct{}{}
}

// LeaveRoom removes a room membership.
func (c *Client) LeaveRoom(roomKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomKey)
}

// enqueue queues outbound data without ever blocking the caller. A
// full buffer or a finished connection drops the payload.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown stops the write pump. The send channel is intentionally
// never closed; delivery paths may still be holding a reference.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump reads events from the WebSocket until the transport closes,
// then unwinds this connection's state through the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: client %s disconnected", c.user.ID)
			} else {
				log.Printf("ws: read error from %s: %v", c.user.ID, err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes queued events to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.user.ID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.user.ID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes one incoming client event. A failure here is
// reported back on this connection only; it never tears the connection
// down or leaks into anyone else's delivery.
func (c *Client) handleEvent(event *Event) {
	metrics.EventsReceived.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case EventTypeMessageSend:
		c.handleSendMessage(event)

	case EventTypeTyping:
		var p TypingPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ReceiverID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "invalid typing payload")
			return
		}
		c.hub.RelayTyping(c, p.ReceiverID, p.IsTyping)

	case EventTypeMarkRead:
		var p MarkReadPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.SenderID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "invalid messages.mark_read payload")
			return
		}
		if err := c.chat.MarkConversationRead(context.Background(), c.user.ID, p.SenderID); err != nil {
			log.Printf("ws: mark read by %s failed: %v", c.user.ID, err)
		}

	case EventTypeReactionAdd:
		c.handleAddReaction(event)

	case EventTypeReactionRemove:
		c.handleRemoveReaction(event)

	case EventTypeRoomJoin:
		var p RoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.UserID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "invalid room.join payload")
			return
		}
		key := RoomKey(c.user.ID, p.UserID)
		c.JoinRoom(key)
		log.Printf("ws: %s joined room %s", c.user.Username, key)

	case EventTypeRoomLeave:
		var p RoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.UserID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "invalid room.leave payload")
			return
		}
		key := RoomKey(c.user.ID, p.UserID)
		c.LeaveRoom(key)
		log.Printf("ws: %s left room %s", c.user.Username, key)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) handleSendMessage(event *Event) {
	var p MessageSendPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil || p.ReceiverID == uuid.Nil {
		c.sendError("INVALID_PAYLOAD", "invalid message.send payload")
		return
	}
	if errs := validator.ValidateMessage(p.Text, p.Attachment); errs.HasErrors() {
		c.sendValidationError(errs)
		return
	}

	msg, err := c.chat.SendMessage(context.Background(), c.user.ID, p.ReceiverID, service.SendMessageInput{
		Text:       p.Text,
		Attachment: p.Attachment,
	})
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		c.sendError("VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		c.sendError("NOT_FOUND", "receiver not found")
	case err != nil:
		log.Printf("ws: send message from %s failed: %v", c.user.ID, err)
		c.sendError("INTERNAL", "failed to send message")
	default:
		// Socket-originated sends are acked on the sender's own
		// connection; REST sends answer with the record only.
		c.sendEvent(EventTypeMessageSent, MessagePayload{Message: *msg})
	}
}

func (c *Client) handleAddReaction(event *Event) {
	var p ReactionAddPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil || p.MessageID == uuid.Nil {
		c.sendError("INVALID_PAYLOAD", "invalid reaction.add payload")
		return
	}
	if errs := validator.ValidateReaction(p.Emoji); errs.HasErrors() {
		c.sendValidationError(errs)
		return
	}

	_, err := c.chat.AddReaction(context.Background(), c.user.ID, p.MessageID, p.Emoji, p.ReceiverID)
	switch {
	case errors.Is(err, service.ErrMessageNotFound):
		c.sendError("NOT_FOUND", "message not found")
	case err != nil:
		log.Printf("ws: add reaction from %s failed: %v", c.user.ID, err)
		c.sendError("INTERNAL", "failed to add reaction")
	}
}

func (c *Client) handleRemoveReaction(event *Event) {
	var p ReactionRemovePayload
	if err := json.Unmarshal(event.Payload, &p); err != nil || p.MessageID == uuid.Nil {
		c.sendError("INVALID_PAYLOAD", "invalid reaction.remove payload")
		return
	}

	_, err := c.chat.RemoveReaction(context.Background(), c.user.ID, p.MessageID, p.ReceiverID)
	switch {
	case errors.Is(err, service.ErrMessageNotFound):
		c.sendError("NOT_FOUND", "message not found")
	case err != nil:
		log.Printf("ws: remove reaction from %s failed: %v", c.user.ID, err)
		c.sendError("INTERNAL", "failed to remove reaction")
	}
}

func (c *Client) sendEvent(eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong})
	c.enqueue(data)
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
}

func (c *Client) sendValidationError(errs validator.ValidationErrors) {
	c.sendEvent(EventTypeError, ErrorPayload{
		Code:    "VALIDATION_ERROR",
		Message: "invalid event payload",
		Fields:  errs,
	})
}
