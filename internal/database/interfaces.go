package database

import (
	"context"
	"time"

	"social-app/internal/models"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	UpdateUserLocation(ctx context.Context, id string, loc *models.Location) error
	// NearestUsers orders other users by great-circle distance from origin;
	// users without coordinates sort last.
	NearestUsers(ctx context.Context, excludeID string, origin models.Location, limit int) ([]*models.User, error)
	// RecentUsers returns the most recently created users other than excludeID.
	RecentUsers(ctx context.Context, excludeID string, limit int) ([]*models.User, error)
}

type ConversationStore interface {
	// CreateConversation returns the pair's conversation, creating it in the
	// same step when none exists yet.
	CreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)
	FindConversationByPair(ctx context.Context, userA, userB string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// ListConversations returns userID's conversations newest first, limited
	// to lastMessageTime >= since when since is set.
	ListConversations(ctx context.Context, userID string, since *time.Time) ([]*models.Conversation, error)
	UpdateLastMessage(ctx context.Context, id string, at time.Time, content string) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	// FindMessageForRecipient only matches when recipientID received the message.
	FindMessageForRecipient(ctx context.Context, id, conversationID, recipientID string) (*models.Message, error)
	MarkMessageRead(ctx context.Context, id string) error
	ListMessages(ctx context.Context, conversationID string, since *time.Time) ([]*models.Message, error)
	CountUnreadMessages(ctx context.Context, conversationID, recipientID string) (int, error)
}

type NotificationStore interface {
	CountUnread(ctx context.Context, userID string, kind models.NotificationKind) (int, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type CallStore interface {
	CreateCallRecord(ctx context.Context, rec *models.CallRecord) error
	// EndCallRecord closes an open call that participantID took part in.
	EndCallRecord(ctx context.Context, id, participantID string, at time.Time) (*models.CallRecord, error)
}

type SocialStore interface {
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	// Follow reports whether a new follow edge was created.
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
	RecordVisit(ctx context.Context, visitorID, userID string) error
	CountVisitors(ctx context.Context, userID string) (int, error)
}

type Database interface {
	UserStore
	ConversationStore
	MessageStore
	NotificationStore
	CallStore
	SocialStore
	Close() error
}
