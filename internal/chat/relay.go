// Package chat relays one-to-one conversations over the push channel:
// conversation setup, message exchange, read receipts, catch-up batches and
// voice call signalling.
package chat

import (
	"context"
	"strings"
	"time"

	"social-app/internal/database"
	"social-app/internal/geo"
	"social-app/internal/models"
	"social-app/internal/notify"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// BatchSize bounds the number of items per catch-up envelope.
const BatchSize = 10

var (
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrInvalidRequest = errors.New("invalid request")
)

// OnlineChecker reports live presence.
type OnlineChecker interface {
	IsOnline(userID string) bool
}

type Stores struct {
	Users         database.UserStore
	Conversations database.ConversationStore
	Messages      database.MessageStore
	Calls         database.CallStore
	Social        database.SocialStore
}

type Relay struct {
	stores   Stores
	online   OnlineChecker
	notifier *notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewRelay(stores Stores, online OnlineChecker, notifier *notify.Notifier, log *zap.Logger) *Relay {
	return &Relay{
		stores:   stores,
		online:   online,
		notifier: notifier,
		log:      log.Named("chat"),
		now:      time.Now,
	}
}

// CreateConversation opens (or reuses) the conversation between initiator
// and opponent and pushes each side its own view of it.
func (r *Relay) CreateConversation(ctx context.Context, initiatorID, opponentID string) error {
	if opponentID == "" || opponentID == initiatorID {
		return errors.Wrap(ErrInvalidRequest, "opponent must be another user")
	}

	initiator, err := r.stores.Users.GetUserByID(ctx, initiatorID)
	if err != nil {
		return errors.Wrapf(err, "load initiator %s", initiatorID)
	}
	opponent, err := r.stores.Users.GetUserByID(ctx, opponentID)
	if err != nil {
		return errors.Wrapf(err, "load opponent %s", opponentID)
	}

	conv, err := r.stores.Conversations.CreateConversation(ctx, initiatorID, opponentID)
	if err != nil {
		return errors.Wrap(err, "open conversation")
	}

	for _, side := range [][2]*models.User{{initiator, opponent}, {opponent, initiator}} {
		view, err := r.view(ctx, conv, side[0], side[1])
		if err != nil {
			return err
		}
		if err := r.notifier.Push(ctx, side[0].ID, models.Envelope{
			Type: models.EventConversationCreated,
			Data: view,
		}); err != nil {
			return err
		}
	}
	return nil
}

// GetRecentConversations pushes userID's conversations newest first in
// batches of BatchSize, optionally limited to those active since a unix time.
func (r *Relay) GetRecentConversations(ctx context.Context, userID string, since *int64) error {
	viewer, err := r.stores.Users.GetUserByID(ctx, userID)
	if err != nil {
		return errors.Wrapf(err, "load user %s", userID)
	}
	conversations, err := r.stores.Conversations.ListConversations(ctx, userID, unixPtr(since))
	if err != nil {
		return err
	}

	views := make([]models.ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		opponent, err := r.stores.Users.GetUserByID(ctx, conv.OpponentOf(userID))
		if err != nil {
			r.log.Warn("skipping conversation with unknown opponent",
				zap.String("conversation", conv.ID), zap.Error(err))
			continue
		}
		view, err := r.view(ctx, conv, viewer, opponent)
		if err != nil {
			return err
		}
		views = append(views, view)
	}

	for _, batch := range batches(views, BatchSize) {
		if err := r.notifier.Push(ctx, userID, models.Envelope{
			Type: models.EventRecentConversations,
			Data: models.RecentConversationsPayload{Conversations: batch},
		}); err != nil {
			return err
		}
	}
	return nil
}

// GetRecentMessages pushes a conversation's messages newest first in
// batches of BatchSize. Only participants may read them.
func (r *Relay) GetRecentMessages(ctx context.Context, userID, conversationID string, since *int64) error {
	if _, err := r.participantConversation(ctx, userID, conversationID); err != nil {
		return err
	}

	messages, err := r.stores.Messages.ListMessages(ctx, conversationID, unixPtr(since))
	if err != nil {
		return err
	}

	event := models.EventRecentMessages
	if since != nil {
		event = models.EventRecentMessagesSince
	}

	payloads := make([]models.MessagePayload, len(messages))
	for i, m := range messages {
		payloads[i] = models.NewMessagePayload(m)
	}
	for _, batch := range batches(payloads, BatchSize) {
		if err := r.notifier.Push(ctx, userID, models.Envelope{
			Type: event,
			Data: models.RecentMessagesPayload{ConversationID: conversationID, Messages: batch},
		}); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage stores a message and pushes the identical message-sent
// envelope to both sender and recipient.
func (r *Relay) SendMessage(ctx context.Context, senderID string, req models.SendMessageRequest) error {
	if strings.TrimSpace(req.Content) == "" {
		return errors.Wrap(ErrInvalidRequest, "empty message")
	}
	conv, err := r.participantConversation(ctx, senderID, req.ConversationID)
	if err != nil {
		return err
	}
	recipientID := conv.OpponentOf(senderID)
	if req.OpponentUserID != "" && req.OpponentUserID != recipientID {
		return errors.Wrapf(ErrNotParticipant, "user %s in conversation %s", req.OpponentUserID, conv.ID)
	}

	msg, err := r.storeMessage(ctx, conv, senderID, recipientID, req.Content)
	if err != nil {
		return err
	}
	return r.pushBoth(ctx, models.EventMessageSent, models.NewMessagePayload(msg), senderID, recipientID)
}

// MarkRead flips a message to read. Only its recipient may do so; both the
// reader and the original sender receive the receipt.
func (r *Relay) MarkRead(ctx context.Context, userID string, req models.MarkReadRequest) error {
	msg, err := r.stores.Messages.FindMessageForRecipient(ctx, req.MessageID, req.ConversationID, userID)
	if err != nil {
		return errors.Wrapf(err, "message %s for recipient %s", req.MessageID, userID)
	}
	if err := r.stores.Messages.MarkMessageRead(ctx, msg.ID); err != nil {
		return err
	}
	msg.ReadStatus = models.ReadStatusRead

	return r.pushBoth(ctx, models.EventReadReceipt, models.NewMessagePayload(msg), userID, msg.SenderID)
}

func (r *Relay) participantConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv, err := r.stores.Conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, errors.Wrapf(err, "conversation %s", conversationID)
	}
	if !conv.HasParticipant(userID) {
		return nil, errors.Wrapf(ErrNotParticipant, "user %s in conversation %s", userID, conversationID)
	}
	return conv, nil
}

func (r *Relay) storeMessage(ctx context.Context, conv *models.Conversation, senderID, recipientID, content string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		SentTime:       r.now(),
		ReadStatus:     models.ReadStatusUnread,
	}
	if err := r.stores.Messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := r.stores.Conversations.UpdateLastMessage(ctx, conv.ID, msg.SentTime, msg.Content); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Relay) pushBoth(ctx context.Context, event models.EventType, data any, first, second string) error {
	env := models.Envelope{Type: event, Data: data}
	if err := r.notifier.Push(ctx, first, env); err != nil {
		return err
	}
	if second == first {
		return nil
	}
	return r.notifier.Push(ctx, second, env)
}

// view builds viewer's picture of conv, with opponent as the other side.
func (r *Relay) view(ctx context.Context, conv *models.Conversation, viewer, opponent *models.User) (models.ConversationView, error) {
	following, err := r.stores.Social.IsFollowing(ctx, viewer.ID, opponent.ID)
	if err != nil {
		return models.ConversationView{}, errors.Wrap(err, "follow flag")
	}
	blocked, err := r.stores.Social.IsBlocked(ctx, viewer.ID, opponent.ID)
	if err != nil {
		return models.ConversationView{}, errors.Wrap(err, "block flag")
	}
	unread, err := r.stores.Messages.CountUnreadMessages(ctx, conv.ID, viewer.ID)
	if err != nil {
		return models.ConversationView{}, err
	}

	return models.ConversationView{
		ConversationID: conv.ID,
		Opponent: models.OpponentView{
			UserID:      opponent.ID,
			Username:    opponent.Username,
			AvatarURL:   opponent.AvatarURL,
			Online:      r.online.IsOnline(opponent.ID),
			IsFollowing: following,
			IsBlocked:   blocked,
			Distance:    geo.Between(viewer.Location, opponent.Location),
		},
		LastMessageTime:    conv.LastMessageTime.Unix(),
		LastMessageContent: conv.LastMessageContent,
		UnreadCount:        unread,
	}, nil
}

func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func unixPtr(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0)
	return &t
}
