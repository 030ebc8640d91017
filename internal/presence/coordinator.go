// Package presence reacts to connection lifecycle and location changes by
// pushing nearest-users and online-count updates to the affected users.
package presence

import (
	"context"

	"social-app/internal/database"
	"social-app/internal/models"
	"social-app/internal/monitoring"
	"social-app/internal/notify"
	"social-app/internal/proximity"
	"social-app/internal/registry"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mirror publishes online state outside the process. Optional.
type Mirror interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

type Options struct {
	// Concurrency bounds the number of targets processed at once per policy.
	Concurrency int
	// BroadcastOnDisconnect pushes online-count to everyone when a user
	// goes fully offline.
	BroadcastOnDisconnect bool
	Mirror                Mirror
}

type Coordinator struct {
	reg       *registry.Registry
	users     database.UserStore
	proximity *proximity.Service
	notifier  *notify.Notifier
	guard     *monitoring.Guard
	log       *zap.Logger
	opts      Options
}

func NewCoordinator(
	reg *registry.Registry,
	users database.UserStore,
	prox *proximity.Service,
	notifier *notify.Notifier,
	guard *monitoring.Guard,
	log *zap.Logger,
	opts Options,
) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Coordinator{
		reg:       reg,
		users:     users,
		proximity: prox,
		notifier:  notifier,
		guard:     guard,
		log:       log.Named("presence"),
		opts:      opts,
	}
}

// Connected registers conn for userID, brings the user up to date and
// notifies the other online users. The policy run depends on whether the
// connecting user has a location.
func (c *Coordinator) Connected(ctx context.Context, userID string, conn registry.Conn) {
	c.reg.Register(userID, conn)
	c.log.Info("user connected", zap.String("user", userID), zap.String("conn", conn.ID()))

	if c.opts.Mirror != nil {
		c.guard.Run(ctx, "presence_mirror_online", func(ctx context.Context) error {
			return c.opts.Mirror.Online(ctx, userID)
		}, zap.String("user", userID))
	}

	var user *models.User
	c.guard.Run(ctx, "connect_self_sync", func(ctx context.Context) error {
		u, err := c.users.GetUserByID(ctx, userID)
		if err != nil {
			return errors.Wrapf(err, "load user %s", userID)
		}
		user = u
		return c.syncSelf(ctx, u)
	}, zap.String("user", userID))
	if user == nil {
		return
	}

	if user.HasLocation() {
		c.ProcessAllOnlineUsers(ctx, userID)
	} else {
		c.ProcessUsersWithEmptyLocation(ctx, userID)
	}
}

// Disconnected unregisters conn. When it was the user's last connection the
// mirror is cleared and, if enabled, everyone else gets a fresh online count.
func (c *Coordinator) Disconnected(ctx context.Context, userID string, conn registry.Conn) {
	c.reg.Unregister(userID, conn)
	c.log.Info("user disconnected", zap.String("user", userID), zap.String("conn", conn.ID()))

	if c.reg.IsOnline(userID) {
		return
	}
	if c.opts.Mirror != nil {
		c.guard.Run(ctx, "presence_mirror_offline", func(ctx context.Context) error {
			return c.opts.Mirror.Offline(ctx, userID)
		}, zap.String("user", userID))
	}
	if c.opts.BroadcastOnDisconnect {
		c.ProcessOnlineUsers(ctx, userID)
	}
}

// Heartbeat renews the mirrored presence of an online user.
func (c *Coordinator) Heartbeat(ctx context.Context, userID string) {
	if c.opts.Mirror == nil || !c.reg.IsOnline(userID) {
		return
	}
	c.guard.Run(ctx, "presence_mirror_heartbeat", func(ctx context.Context) error {
		return c.opts.Mirror.Online(ctx, userID)
	}, zap.String("user", userID))
}

// LocationUpdated refreshes the user's own nearest list and pushes new
// nearest lists to online users that have a location.
func (c *Coordinator) LocationUpdated(ctx context.Context, userID string) {
	c.guard.Run(ctx, "location_self_sync", func(ctx context.Context) error {
		return c.pushNearest(ctx, userID)
	}, zap.String("user", userID))
	c.ProcessUsersWithLocation(ctx, userID)
}

func (c *Coordinator) syncSelf(ctx context.Context, user *models.User) error {
	if err := c.pushNearestTo(ctx, user); err != nil {
		return err
	}
	if err := c.notifier.PushOnlineCount(ctx, user.ID); err != nil {
		return err
	}
	return c.notifier.PushUnreadCount(ctx, user.ID)
}

// ProcessUsersWithEmptyLocation pushes nearest-users and online-count to
// every other online user that has no location.
func (c *Coordinator) ProcessUsersWithEmptyLocation(ctx context.Context, trigger string) {
	c.fanOut(ctx, "process_users_with_empty_location", trigger, func(ctx context.Context, target string) error {
		user, err := c.users.GetUserByID(ctx, target)
		if err != nil {
			return errors.Wrapf(err, "load user %s", target)
		}
		if user.HasLocation() {
			return nil
		}
		if err := c.pushNearestTo(ctx, user); err != nil {
			return err
		}
		return c.notifier.PushOnlineCount(ctx, target)
	})
}

// ProcessAllOnlineUsers pushes nearest-users and online-count to every other
// online user. Each target's nearest list is computed from its own location
// state.
func (c *Coordinator) ProcessAllOnlineUsers(ctx context.Context, trigger string) {
	c.fanOut(ctx, "process_all_online_users", trigger, func(ctx context.Context, target string) error {
		user, err := c.users.GetUserByID(ctx, target)
		if err != nil {
			return errors.Wrapf(err, "load user %s", target)
		}
		if err := c.pushNearestTo(ctx, user); err != nil {
			return err
		}
		return c.notifier.PushOnlineCount(ctx, target)
	})
}

// ProcessUsersWithLocation pushes nearest-users only, to every other online
// user that has a location.
func (c *Coordinator) ProcessUsersWithLocation(ctx context.Context, trigger string) {
	c.fanOut(ctx, "process_users_with_location", trigger, func(ctx context.Context, target string) error {
		user, err := c.users.GetUserByID(ctx, target)
		if err != nil {
			return errors.Wrapf(err, "load user %s", target)
		}
		if !user.HasLocation() {
			return nil
		}
		return c.pushNearestTo(ctx, user)
	})
}

// ProcessOnlineUsers pushes online-count to every other online user.
func (c *Coordinator) ProcessOnlineUsers(ctx context.Context, trigger string) {
	c.fanOut(ctx, "process_online_users", trigger, func(ctx context.Context, target string) error {
		return c.notifier.PushOnlineCount(ctx, target)
	})
}

// fanOut runs deliver for every online user except trigger with bounded
// concurrency. A failing target is logged and reported; the rest continue.
func (c *Coordinator) fanOut(ctx context.Context, op, trigger string, deliver func(ctx context.Context, target string) error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for _, target := range c.reg.OnlineUsers() {
		if target == trigger {
			continue
		}
		target := target
		g.Go(func() error {
			c.guard.Run(gctx, op, func(ctx context.Context) error {
				return deliver(ctx, target)
			}, zap.String("trigger", trigger), zap.String("target", target))
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) pushNearest(ctx context.Context, userID string) error {
	user, err := c.users.GetUserByID(ctx, userID)
	if err != nil {
		return errors.Wrapf(err, "load user %s", userID)
	}
	return c.pushNearestTo(ctx, user)
}

func (c *Coordinator) pushNearestTo(ctx context.Context, user *models.User) error {
	nearest, err := c.proximity.NearestTo(ctx, user)
	if err != nil {
		return err
	}
	return c.notifier.PushNearestUsers(ctx, user.ID, nearest)
}
