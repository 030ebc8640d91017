// Package notify fans typed envelopes out to every live connection of a user.
package notify

import (
	"context"
	"encoding/json"

	"social-app/internal/database"
	"social-app/internal/models"
	"social-app/internal/registry"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Connections is the read side of the connection registry.
type Connections interface {
	ConnectionsOf(userID string) []registry.Conn
	OnlineUserCount() int
}

type Notifier struct {
	conns         Connections
	notifications database.NotificationStore
	log           *zap.Logger
	// quiet suppresses the per-send debug log in test mode.
	quiet bool
}

func New(conns Connections, notifications database.NotificationStore, log *zap.Logger, quiet bool) *Notifier {
	return &Notifier{
		conns:         conns,
		notifications: notifications,
		log:           log.Named("notify"),
		quiet:         quiet,
	}
}

// Push sends env to every live connection of userID. Offline users are a
// no-op. A failing handle is logged and does not affect its siblings; the
// only returned error is an encoding failure.
func (n *Notifier) Push(_ context.Context, userID string, env models.Envelope) error {
	conns := n.conns.ConnectionsOf(userID)
	if len(conns) == 0 {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, "encode %s envelope", env.Type)
	}

	for _, c := range conns {
		if err := c.Send(data); err != nil {
			n.log.Warn("delivery failed",
				zap.String("user", userID),
				zap.String("conn", c.ID()),
				zap.Stringer("event", env.Type),
				zap.Error(err))
			continue
		}
		if !n.quiet {
			n.log.Debug("pushed",
				zap.String("user", userID),
				zap.String("conn", c.ID()),
				zap.Int("type", int(env.Type)),
				zap.ByteString("payload", data))
		}
	}
	return nil
}

// UnreadCount sums the unread notifications of every kind for userID.
func (n *Notifier) UnreadCount(ctx context.Context, userID string) (int, error) {
	total := 0
	for _, kind := range models.UnreadKinds {
		c, err := n.notifications.CountUnread(ctx, userID, kind)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// PushUnreadCount recomputes the unread aggregate and pushes it.
func (n *Notifier) PushUnreadCount(ctx context.Context, userID string) error {
	count, err := n.UnreadCount(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "unread count")
	}
	return n.PushCount(ctx, userID, models.EventUnreadCount, count)
}

func (n *Notifier) PushOnlineCount(ctx context.Context, userID string) error {
	return n.Push(ctx, userID, models.Envelope{
		Type: models.EventOnlineCount,
		Data: models.OnlineCountPayload{Online: n.conns.OnlineUserCount()},
	})
}

// PushCount pushes a {count} payload; used by the unread, followers,
// visitors, coin and gift counters.
func (n *Notifier) PushCount(ctx context.Context, userID string, event models.EventType, count int) error {
	return n.Push(ctx, userID, models.Envelope{
		Type: event,
		Data: models.CountPayload{Count: count},
	})
}

func (n *Notifier) PushNearestUsers(ctx context.Context, userID string, users []models.NearbyUser) error {
	if users == nil {
		users = []models.NearbyUser{}
	}
	return n.Push(ctx, userID, models.Envelope{
		Type: models.EventNearestUsers,
		Data: models.NearestUsersPayload{Users: users},
	})
}
