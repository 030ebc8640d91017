package chat

import (
	"bytes"
	"context"
	"encoding/json"

	"social-app/internal/database"
	"social-app/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	fieldOpponent     = "opponentUserId"
	fieldConversation = "conversationId"
	fieldCallID       = "callId"
	fieldEnded        = "ended"

	callStartedContent = "initiated a voice call"
)

// InitiateVoiceCall records a call and a synthetic chat message, then
// forwards the caller's payload to the opponent as a voice-call envelope.
// The caller's own connections get the same payload addressed the other way.
func (r *Relay) InitiateVoiceCall(ctx context.Context, callerID string, raw json.RawMessage) error {
	payload, err := parseSignal(raw)
	if err != nil {
		return err
	}
	conv, err := r.participantConversation(ctx, callerID, payload.String(fieldConversation))
	if err != nil {
		return err
	}
	calleeID := conv.OpponentOf(callerID)
	if opp := payload.String(fieldOpponent); opp != "" && opp != calleeID {
		return errors.Wrapf(ErrNotParticipant, "user %s in conversation %s", opp, conv.ID)
	}

	rec := &models.CallRecord{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		CallerID:       callerID,
		CalleeID:       calleeID,
		StartTime:      r.now(),
	}
	if err := r.stores.Calls.CreateCallRecord(ctx, rec); err != nil {
		return err
	}

	msg, err := r.storeMessage(ctx, conv, callerID, calleeID, callStartedContent)
	if err != nil {
		return err
	}
	if err := r.pushBoth(ctx, models.EventMessageSent, models.NewMessagePayload(msg), callerID, calleeID); err != nil {
		return err
	}

	payload, err = payload.With(fieldCallID, rec.ID)
	if err != nil {
		return err
	}
	if err := r.pushSignal(ctx, calleeID, models.EventVoiceCall, payload, callerID); err != nil {
		return err
	}
	return r.pushSignal(ctx, callerID, models.EventVoiceCall, payload, calleeID)
}

// EndVoiceCall closes a call either party is still on and tells the other
// party it ended.
func (r *Relay) EndVoiceCall(ctx context.Context, userID string, req models.EndVoiceCallRequest) error {
	if req.CallID == "" {
		return errors.Wrap(ErrInvalidRequest, "missing call id")
	}
	rec, err := r.stores.Calls.EndCallRecord(ctx, req.CallID, userID, r.now())
	if err != nil {
		return errors.Wrapf(err, "end call %s", req.CallID)
	}

	other := rec.CalleeID
	if userID == rec.CalleeID {
		other = rec.CallerID
	}
	return r.notifier.Push(ctx, other, models.Envelope{
		Type: models.EventVoiceCall,
		Data: map[string]any{
			fieldCallID:       rec.ID,
			fieldConversation: rec.ConversationID,
			fieldOpponent:     userID,
			fieldEnded:        true,
		},
	})
}

// RelaySignal forwards a WebRTC offer, answer or ICE candidate verbatim to
// the payload's opponentUserId, who must share a conversation with the
// sender. The forwarded copy names the sender as the opponent so the
// receiver always knows who it came from.
func (r *Relay) RelaySignal(ctx context.Context, senderID string, inbound models.InboundType, raw json.RawMessage) error {
	event, ok := models.SignalEventType(inbound)
	if !ok {
		return errors.Wrapf(ErrInvalidRequest, "inbound type %d is not a signal", inbound)
	}
	payload, err := parseSignal(raw)
	if err != nil {
		return err
	}
	target := payload.String(fieldOpponent)
	if target == "" || target == senderID {
		return errors.Wrap(ErrInvalidRequest, "signal needs another user as opponentUserId")
	}

	if _, err := r.stores.Conversations.FindConversationByPair(ctx, senderID, target); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errors.Wrapf(ErrNotParticipant, "no conversation between %s and %s", senderID, target)
		}
		return err
	}
	return r.pushSignal(ctx, target, event, payload, senderID)
}

// pushSignal sends payload to target with opponentUserId set to from.
func (r *Relay) pushSignal(ctx context.Context, target string, event models.EventType, payload signalPayload, from string) error {
	out, err := payload.With(fieldOpponent, from)
	if err != nil {
		return err
	}
	return r.notifier.Push(ctx, target, models.Envelope{Type: event, Data: out})
}

// signalPayload is a JSON object kept as raw field values in their original
// order, so relayed fields reach the peer byte for byte.
type signalPayload struct {
	keys   []string
	values map[string]json.RawMessage
}

func parseSignal(raw json.RawMessage) (signalPayload, error) {
	p := signalPayload{values: make(map[string]json.RawMessage)}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return p, errors.Wrap(ErrInvalidRequest, "signal payload must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return p, errors.Wrap(ErrInvalidRequest, err.Error())
		}
		key := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return p, errors.Wrap(ErrInvalidRequest, err.Error())
		}
		if _, seen := p.values[key]; !seen {
			p.keys = append(p.keys, key)
		}
		p.values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return p, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	return p, nil
}

// String returns a string field, or "" when absent or not a string.
func (p signalPayload) String(key string) string {
	var s string
	if raw, ok := p.values[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// With returns a copy with key set to v; a new key goes last.
func (p signalPayload) With(key string, v any) (signalPayload, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return p, errors.Wrapf(err, "encode %s", key)
	}
	out := signalPayload{
		keys:   append([]string(nil), p.keys...),
		values: make(map[string]json.RawMessage, len(p.values)+1),
	}
	for k, raw := range p.values {
		out.values[k] = raw
	}
	if _, ok := out.values[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.values[key] = encoded
	return out, nil
}

func (p signalPayload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(p.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
