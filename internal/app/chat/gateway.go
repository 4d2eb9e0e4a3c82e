/*
Package chat contains the core logic of the real-time session and delivery layer.

This file defines the Gateway: room subscription bookkeeping, event multicast
to a room's subscribers, and notification fan-out to all live connections of a
user. The Gateway never talks to the store itself beyond membership checks;
message persistence is the Coordinator's job.
*/
package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// Gateway owns the per-room subscription sets and the Presence registry.
type Gateway struct {
	// membership is consulted on every join; the check is repeated by the
	// Coordinator on every send because the two are not atomic.
	membership MembershipAuthority

	presence *Presence

	// echoSender controls whether a newMessage broadcast also reaches the
	// author's own connections. The send acknowledgment is independent of it.
	echoSender bool

	// mu protects the rooms map and each subscriber set. Disconnect holds the
	// write lock while removing a client from every room, so teardown is
	// atomic with respect to a concurrent Publish.
	mu    sync.RWMutex
	rooms map[int64]map[*Client]struct{}

	logger zerolog.Logger
}

// NewGateway constructs a Gateway around the given membership authority.
func NewGateway(membership MembershipAuthority, echoSender bool) *Gateway {
	gatewayLogger := logx.Logger().With().Str("component", "Gateway").Logger()

	return &Gateway{
		membership: membership,
		presence:   NewPresence(),
		echoSender: echoSender,
		rooms:      make(map[int64]map[*Client]struct{}),
		logger:     gatewayLogger,
	}
}

// Presence exposes the registry for handlers that need connection lookups.
func (g *Gateway) Presence() *Presence {
	return g.presence
}

// EchoSender reports whether newMessage broadcasts include the author.
func (g *Gateway) EchoSender() bool {
	return g.echoSender
}

// Connect registers an authenticated connection with the Presence registry.
// Called exactly once per connection, before its pumps start.
func (g *Gateway) Connect(c *Client) {
	g.presence.Register(c.user.ID, c)

	g.logger.Info().
		Str("connection_id", c.id).
		Int64("user_id", c.user.ID).
		Msg("Connection registered.")
}

// Disconnect tears a connection down: every room subscription is removed,
// the presence entry is pruned, and the send queue is closed. After this
// returns no Publish or NotifyUser can reach the connection.
func (g *Gateway) Disconnect(c *Client) {
	g.mu.Lock()
	for roomID, subs := range g.rooms {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(g.rooms, roomID)
			}
		}
	}
	g.mu.Unlock()

	g.presence.Unregister(c.user.ID, c)
	c.closeSend()

	g.logger.Info().
		Str("connection_id", c.id).
		Int64("user_id", c.user.ID).
		Msg("Connection torn down.")
}

// Join subscribes the connection to a room after the membership authority
// confirms the user belongs to it. Joining an already-joined room is a no-op.
// A store failure denies the join rather than failing open.
func (g *Gateway) Join(ctx context.Context, c *Client, roomID int64) *errs.CustomError {
	isMember, err := g.membership.IsRoomMember(ctx, c.user.ID, roomID)
	if err != nil {
		g.logger.Error().Err(err).
			Int64("user_id", c.user.ID).
			Int64("room_id", roomID).
			Msg("Membership check failed during join.")
		return errs.NewError(errs.ErrStoreUnavailable)
	}
	if !isMember {
		return errs.NewError(errs.ErrRoomForbidden)
	}

	g.mu.Lock()
	subs, ok := g.rooms[roomID]
	if !ok {
		subs = make(map[*Client]struct{})
		g.rooms[roomID] = subs
	}
	subs[c] = struct{}{}
	g.mu.Unlock()

	g.logger.Info().
		Str("connection_id", c.id).
		Int64("user_id", c.user.ID).
		Int64("room_id", roomID).
		Msg("Connection joined room.")
	return nil
}

// Leave removes the connection's subscription to the room. No-op if absent.
func (g *Gateway) Leave(c *Client, roomID int64) {
	g.mu.Lock()
	if subs, ok := g.rooms[roomID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(g.rooms, roomID)
		}
	}
	g.mu.Unlock()
}

// Publish delivers the event to every connection currently subscribed to the
// room, excluding connections owned by excludeUserID when non-zero. Delivery
// is best-effort per connection: a subscriber whose send queue is full is
// unsubscribed from the room instead of blocking the publisher.
func (g *Gateway) Publish(roomID int64, event ServerEvent, excludeUserID int64) {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		g.logger.Error().Err(err).
			Str("event_type", string(event.Type)).
			Int64("room_id", roomID).
			Msg("Error marshaling event for broadcast.")
		return
	}

	var stalled []*Client

	g.mu.RLock()
	for c := range g.rooms[roomID] {
		if excludeUserID != 0 && c.user.ID == excludeUserID {
			continue
		}
		if !c.enqueue(messageBytes) {
			stalled = append(stalled, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range stalled {
		g.logger.Warn().
			Str("connection_id", c.id).
			Int64("room_id", roomID).
			Msg("Subscriber send queue full or closed, dropping room subscription.")
		g.Leave(c, roomID)
	}
}

// NotifyUser delivers the event to every live connection of the user,
// independent of room subscriptions. Delivery failures are swallowed: the
// triggering operation must never block or fail on notification problems.
func (g *Gateway) NotifyUser(userID int64, event ServerEvent) {
	conns := g.presence.ConnectionsOf(userID)
	if len(conns) == 0 {
		return
	}

	messageBytes, err := json.Marshal(event)
	if err != nil {
		g.logger.Error().Err(err).
			Str("event_type", string(event.Type)).
			Int64("user_id", userID).
			Msg("Error marshaling notification event.")
		return
	}

	for _, c := range conns {
		if !c.enqueue(messageBytes) {
			g.logger.Warn().
				Str("connection_id", c.id).
				Int64("user_id", userID).
				Msg("Notification dropped, send queue full or closed.")
		}
	}
}

// SubscriberCount reports how many connections are subscribed to the room.
func (g *Gateway) SubscriberCount(roomID int64) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[roomID])
}
