package ws

import (
	"context"
	"errors"
	"log"

	"chat-backend/internal/observability"
	"chat-backend/internal/repositories"
)

// ParticipantResolver returns the current member ids of a chat.
type ParticipantResolver interface {
	ListParticipantIDs(ctx context.Context, chatID int) ([]int, error)
}

// Dispatcher routes persisted events to the online subset of a chat's
// membership. Deliveries are independent per recipient; a failure for
// one never aborts the rest, and there are no retries.
type Dispatcher struct {
	registry *Registry
	chats    ParticipantResolver
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(registry *Registry, chats ParticipantResolver) *Dispatcher {
	return &Dispatcher{registry: registry, chats: chats}
}

// BroadcastToChat delivers the payload to every participant of the chat
// except excludeUserID. The payload is already durably persisted, so a
// missing chat or a resolver error only skips the live notification.
func (d *Dispatcher) BroadcastToChat(ctx context.Context, chatID int, payload any, excludeUserID int) {
	participants, err := d.chats.ListParticipantIDs(ctx, chatID)
	if err != nil {
		if !errors.Is(err, repositories.ErrChatNotFound) {
			log.Printf("resolve participants for chat %d: %v", chatID, err)
		}
		return
	}

	for _, userID := range participants {
		if userID == excludeUserID {
			continue
		}
		result := d.registry.Deliver(userID, payload)
		observability.IncWSDelivery(result.String())
	}
}

// SendToUser delivers the payload to a single user.
func (d *Dispatcher) SendToUser(userID int, payload any) DeliveryResult {
	result := d.registry.Deliver(userID, payload)
	observability.IncWSDelivery(result.String())
	return result
}

// BroadcastAll delivers the payload to every online user.
func (d *Dispatcher) BroadcastAll(payload any) {
	for _, userID := range d.registry.OnlineUserIDs() {
		result := d.registry.Deliver(userID, payload)
		observability.IncWSDelivery(result.String())
	}
}
