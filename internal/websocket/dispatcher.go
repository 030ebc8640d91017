package websocket

import (
	"context"
	"encoding/json"

	"social-app/internal/chat"
	"social-app/internal/models"
	"social-app/internal/monitoring"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dispatcher routes inbound frames to the chat relay. Every operation runs
// under the guard, so nothing is ever answered with an error frame.
type Dispatcher struct {
	relay *chat.Relay
	guard *monitoring.Guard
	log   *zap.Logger
}

func NewDispatcher(relay *chat.Relay, guard *monitoring.Guard, log *zap.Logger) *Dispatcher {
	return &Dispatcher{relay: relay, guard: guard, log: log.Named("dispatch")}
}

func (d *Dispatcher) Dispatch(ctx context.Context, userID string, frame []byte) {
	var msg models.InboundMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		d.log.Warn("dropping malformed frame", zap.String("user", userID), zap.Error(err))
		return
	}

	var op func(ctx context.Context) error
	switch msg.Type {
	case models.InboundCreateConversation:
		op = func(ctx context.Context) error {
			req, err := decode[models.CreateConversationRequest](msg.Data)
			if err != nil {
				return err
			}
			return d.relay.CreateConversation(ctx, userID, req.OpponentUserID)
		}
	case models.InboundGetRecentConversations:
		op = func(ctx context.Context) error {
			req, err := decode[models.RecentConversationsRequest](msg.Data)
			if err != nil {
				return err
			}
			return d.relay.GetRecentConversations(ctx, userID, req.Since)
		}
	case models.InboundGetRecentMessages:
		op = func(ctx context.Context) error {
			req, err := decode[models.RecentMessagesRequest](msg.Data)
			if err != nil {
				return err
			}
			return d.relay.GetRecentMessages(ctx, userID, req.ConversationID, req.Since)
		}
	case models.InboundMarkRead:
		op = func(ctx context.Context) error {
			req, err := decode[models.MarkReadRequest](msg.Data)
			if err != nil {
				return err
			}
			return d.relay.MarkRead(ctx, userID, req)
		}
	case models.InboundSendMessage:
		op = func(ctx context.Context) error {
			req, err := decode[models.SendMessageRequest](msg.Data)
			if err != nil {
				return err
			}
			return d.relay.SendMessage(ctx, userID, req)
		}
	case models.InboundInitiateVoiceCall:
		op = func(ctx context.Context) error {
			return d.relay.InitiateVoiceCall(ctx, userID, msg.Data)
		}
	case models.InboundEndVoiceCall:
		op = func(ctx context.Context) error {
			req, err := decode[models.EndVoiceCallRequest](msg.Data)
			if err != nil {
				return err
			}
			return d.relay.EndVoiceCall(ctx, userID, req)
		}
	case models.InboundWebRTCOffer, models.InboundWebRTCAnswer, models.InboundWebRTCIceCandidate:
		op = func(ctx context.Context) error {
			return d.relay.RelaySignal(ctx, userID, msg.Type, msg.Data)
		}
	default:
		d.log.Warn("dropping unknown message type", zap.String("user", userID), zap.Int("type", int(msg.Type)))
		return
	}

	d.guard.Run(ctx, msg.Type.String(), op, zap.String("user", userID))
}

// decode treats an absent payload as the zero request.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(chat.ErrInvalidRequest, err.Error())
	}
	return v, nil
}
