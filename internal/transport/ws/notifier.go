package ws

import (
	"log"

	"github.com/google/uuid"
	"github.com/vedran77/chatter/internal/domain"
	"github.com/vedran77/chatter/internal/metrics"
	"github.com/vedran77/chatter/internal/service"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) MessageCreated(msg *domain.Message) {
	evt, err := NewEvent(EventTypeMessageReceived, MessagePayload{Message: *msg})
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	if n.hub.SendToUser(msg.ReceiverID, evt) {
		metrics.MessagesDelivered.Inc()
	}
}

func (n *HubNotifier) ConversationRead(senderID, readBy uuid.UUID) {
	evt, err := NewEvent(EventTypeMessagesRead, MessagesReadPayload{ReadBy: readBy})
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.hub.SendToUser(senderID, evt)
}

func (n *HubNotifier) ReactionAdded(actorID, counterpartID uuid.UUID, upd *service.ReactionUpdate) {
	n.fanOutReaction(EventTypeReactionAdded, actorID, counterpartID, upd)
}

func (n *HubNotifier) ReactionRemoved(actorID, counterpartID uuid.UUID, upd *service.ReactionUpdate) {
	n.fanOutReaction(EventTypeReactionRemoved, actorID, counterpartID, upd)
}

// fanOutReaction notifies both sides of the conversation. Either side
// being offline just skips that unicast.
func (n *HubNotifier) fanOutReaction(eventType string, actorID, counterpartID uuid.UUID, upd *service.ReactionUpdate) {
	evt, err := NewEvent(eventType, upd)
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.hub.SendToUser(actorID, evt)
	if counterpartID != actorID {
		n.hub.SendToUser(counterpartID, evt)
	}
}
