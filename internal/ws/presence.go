package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/store"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
	"github.com/capitalize-ai/chat-platform/pkg/metrics"
)

// PresenceRegistry maps user identities to their live connections. An
// identity may hold several simultaneous connections (multiple tabs); only
// the 0→1 and 1→0 transitions change persisted presence and broadcast
// online/offline events.
type PresenceRegistry struct {
	mu    sync.Mutex
	conns map[string]map[*Client]struct{}
	all   map[*Client]struct{}

	users  store.UserStore
	logger *logger.Logger
}

// NewPresenceRegistry creates a presence registry backed by the given user
// store for the persisted online flag.
func NewPresenceRegistry(users store.UserStore, log *logger.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		conns:  make(map[string]map[*Client]struct{}),
		all:    make(map[*Client]struct{}),
		users:  users,
		logger: log,
	}
}

// OnConnect registers a connection under its identity. The first live
// connection marks the identity online in the store and then broadcasts
// identity-online to all other connections; the store update happens-before
// the broadcast.
func (p *PresenceRegistry) OnConnect(ctx context.Context, client *Client) {
	p.mu.Lock()
	set, ok := p.conns[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		p.conns[client.userID] = set
	}
	first := len(set) == 0
	set[client] = struct{}{}
	p.all[client] = struct{}{}
	p.mu.Unlock()

	if !first {
		return
	}

	metrics.OnlineUsers.Inc()
	if err := p.users.SetPresence(ctx, client.userID, true, time.Now()); err != nil {
		p.logger.Warn("failed to persist online flag",
			zap.String("user_id", client.userID), zap.Error(err))
	}
	p.broadcast(model.EventIdentityOnline, client.userID)
}

// OnDisconnect removes a connection. The identity's last connection marks it
// offline in the store and then broadcasts identity-offline.
func (p *PresenceRegistry) OnDisconnect(ctx context.Context, client *Client) {
	p.mu.Lock()
	delete(p.all, client)
	set, ok := p.conns[client.userID]
	if ok {
		delete(set, client)
	}
	last := ok && len(set) == 0
	if last {
		delete(p.conns, client.userID)
	}
	p.mu.Unlock()

	if !last {
		return
	}

	metrics.OnlineUsers.Dec()
	if err := p.users.SetPresence(ctx, client.userID, false, time.Now()); err != nil {
		p.logger.Warn("failed to persist offline flag",
			zap.String("user_id", client.userID), zap.Error(err))
	}
	p.broadcast(model.EventIdentityOffline, client.userID)
}

// Online reports whether the identity has at least one live connection.
func (p *PresenceRegistry) Online(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns[userID]) > 0
}

// Connections returns the number of live connections across all identities.
func (p *PresenceRegistry) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// broadcast sends a presence event to every connection not owned by the
// subject identity. Best-effort: no retries, no durable outbox; peers that
// connect later read current state from the store instead.
func (p *PresenceRegistry) broadcast(event model.EventType, userID string) {
	payload, err := encodeEvent(event, model.PresenceEvent{UserID: userID})
	if err != nil {
		p.logger.Error("failed to encode presence event", zap.Error(err))
		return
	}

	p.mu.Lock()
	recipients := make([]*Client, 0, len(p.all))
	for client := range p.all {
		if client.userID != userID {
			recipients = append(recipients, client)
		}
	}
	p.mu.Unlock()

	for _, client := range recipients {
		if !client.trySend(payload) {
			metrics.DroppedDeliveriesTotal.Inc()
		}
	}
	metrics.BroadcastsTotal.WithLabelValues(string(event)).Inc()
}
