// internal/websocket/hub.go
package websocket

import (
	"context"
	"errors"
	"sync"

	wstypes "billing-service/internal/domain/websocket"
	"billing-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("unauthorized")

// MessageHandler serves the client events of one module
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

type Hub struct {
	// Registered clients by identity ID
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastMessage

	handlers map[wstypes.EventType]MessageHandler

	jwtVerifier *jwt.Verifier
	logger      *zap.Logger
}

// BroadcastMessage targets IdentityIDs, or every client when IdentityIDs is nil.
type BroadcastMessage struct {
	IdentityIDs []int64
	Channel     wstypes.ChannelType
	Message     *wstypes.WSMessage
}

func NewHub(jwtVerifier *jwt.Verifier, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[int64]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client, 16),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlers:        make(map[wstypes.EventType]MessageHandler),
		jwtVerifier:     jwtVerifier,
		logger:          logger,
	}
}

// AuthenticateClient validates an access token and returns the client identity
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	if h.jwtVerifier == nil {
		return nil, ErrUnauthorized
	}

	claims, err := h.jwtVerifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	return &ClientAuth{
		IdentityID: claims.IdentityID,
		SessionID:  claims.ID,
		Roles:      claims.Roles,
	}, nil
}

// RegisterHandler routes the handler's events to it. Must be called before Run.
// Built-in events and events already claimed by another handler are skipped.
func (h *Hub) RegisterHandler(handler MessageHandler) {
	for _, event := range handler.SupportedEvents() {
		switch event {
		case wstypes.EventTypePing, wstypes.EventTypeSubscribe, wstypes.EventTypeUnsubscribe:
			h.logger.Warn("websocket handler cannot claim built-in event", zap.String("event", string(event)))
			continue
		}
		if _, taken := h.handlers[event]; taken {
			h.logger.Warn("websocket event already has a handler", zap.String("event", string(event)))
			continue
		}
		h.handlers[event] = handler
	}
}

// HandleClientMessage dispatches a client message to its registered handler
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlers[msg.Type]
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.identityID] == nil {
		h.clients[client.identityID] = make(map[*Client]bool)
	}
	h.clients[client.identityID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.Int64("identity_id", client.identityID),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"identity_id": client.identityID,
		"roles":       client.roles,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.identityID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	client.Close()
	if len(clients) == 0 {
		delete(h.clients, client.identityID)
	}

	h.logger.Info("websocket client disconnected",
		zap.Int64("identity_id", client.identityID),
		zap.Int("total", h.totalClients()),
	)
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	send := func(clients map[*Client]bool) {
		for client := range clients {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}

	if msg.IdentityIDs == nil {
		for _, clients := range h.clients {
			send(clients)
		}
		return
	}
	for _, identityID := range msg.IdentityIDs {
		send(h.clients[identityID])
	}
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping message", zap.String("type", string(msg.Message.Type)))
	}
}

// PushNotification sends a stored notification to one user's connections
func (h *Hub) PushNotification(identityID int64, data *wstypes.NotificationData) {
	h.enqueue(&BroadcastMessage{
		IdentityIDs: []int64{identityID},
		Channel:     wstypes.ChannelNotifications,
		Message:     wstypes.NewMessage(wstypes.EventTypeNotification, data),
	})
}

// PushNotificationToAll sends a stored notification to every connected user
func (h *Hub) PushNotificationToAll(data *wstypes.NotificationData) {
	h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelNotifications,
		Message: wstypes.NewMessage(wstypes.EventTypeNotification, data),
	})
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(identityID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identityID]) > 0
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
