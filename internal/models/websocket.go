package models

import "encoding/json"

// EventType is the discriminant of every server-to-client envelope.
type EventType int

const (
	EventNearestUsers EventType = iota
	EventOnlineCount
	EventUnreadCount
	EventConversationCreated
	EventRecentConversations
	EventRecentMessages
	EventRecentMessagesSince
	EventMessageSent
	EventReadReceipt
	EventVoiceCall
	EventWebRTCOffer
	EventWebRTCAnswer
	EventWebRTCIceCandidate
	EventCoinBalance
	EventGiftsReceived
	EventFollowersCount
	EventVisitorsCount
)

func (t EventType) String() string {
	switch t {
	case EventNearestUsers:
		return "nearest_users"
	case EventOnlineCount:
		return "online_count"
	case EventUnreadCount:
		return "unread_count"
	case EventConversationCreated:
		return "conversation_created"
	case EventRecentConversations:
		return "recent_conversations"
	case EventRecentMessages:
		return "recent_messages"
	case EventRecentMessagesSince:
		return "recent_messages_since"
	case EventMessageSent:
		return "message_sent"
	case EventReadReceipt:
		return "read_receipt"
	case EventVoiceCall:
		return "voice_call"
	case EventWebRTCOffer:
		return "webrtc_offer"
	case EventWebRTCAnswer:
		return "webrtc_answer"
	case EventWebRTCIceCandidate:
		return "webrtc_ice_candidate"
	case EventCoinBalance:
		return "coin_balance"
	case EventGiftsReceived:
		return "gifts_received"
	case EventFollowersCount:
		return "followers_count"
	case EventVisitorsCount:
		return "visitors_count"
	}
	return "unknown"
}

// Envelope is the {type, data} wrapper of every pushed message.
type Envelope struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// InboundType is the discriminant of client-to-server messages.
type InboundType int

const (
	InboundCreateConversation InboundType = iota
	InboundGetRecentConversations
	InboundGetRecentMessages
	InboundMarkRead
	InboundSendMessage
	InboundInitiateVoiceCall
	InboundEndVoiceCall
	InboundWebRTCOffer
	InboundWebRTCAnswer
	InboundWebRTCIceCandidate
)

func (t InboundType) String() string {
	switch t {
	case InboundCreateConversation:
		return "create_conversation"
	case InboundGetRecentConversations:
		return "get_recent_conversations"
	case InboundGetRecentMessages:
		return "get_recent_messages"
	case InboundMarkRead:
		return "mark_read"
	case InboundSendMessage:
		return "send_message"
	case InboundInitiateVoiceCall:
		return "initiate_voice_call"
	case InboundEndVoiceCall:
		return "end_voice_call"
	case InboundWebRTCOffer:
		return "webrtc_offer"
	case InboundWebRTCAnswer:
		return "webrtc_answer"
	case InboundWebRTCIceCandidate:
		return "webrtc_ice_candidate"
	}
	return "unknown"
}

// InboundMessage keeps data raw until the dispatcher knows its shape.
type InboundMessage struct {
	Type InboundType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SignalEventType maps an inbound signalling type to its outbound type.
func SignalEventType(t InboundType) (EventType, bool) {
	switch t {
	case InboundWebRTCOffer:
		return EventWebRTCOffer, true
	case InboundWebRTCAnswer:
		return EventWebRTCAnswer, true
	case InboundWebRTCIceCandidate:
		return EventWebRTCIceCandidate, true
	}
	return 0, false
}

type NearestUsersPayload struct {
	Users []NearbyUser `json:"users"`
}

type OnlineCountPayload struct {
	Online int `json:"online"`
}

type CountPayload struct {
	Count int `json:"count"`
}

type OpponentView struct {
	UserID      string   `json:"userId"`
	Username    string   `json:"username"`
	AvatarURL   string   `json:"avatarUrl"`
	Online      bool     `json:"online"`
	IsFollowing bool     `json:"isFollowing"`
	IsBlocked   bool     `json:"isBlocked"`
	Distance    *float64 `json:"distance"`
}

// ConversationView is one party's view of a conversation.
type ConversationView struct {
	ConversationID     string       `json:"conversationId"`
	Opponent           OpponentView `json:"opponent"`
	LastMessageTime    int64        `json:"lastMessageTime"`
	LastMessageContent string       `json:"lastMessageContent"`
	UnreadCount        int          `json:"unreadCount"`
}

type RecentConversationsPayload struct {
	Conversations []ConversationView `json:"conversations"`
}

// MessagePayload is the wire form of a chat message; SentTime is unix seconds.
type MessagePayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
	SentTime       int64  `json:"sentTime"`
	ReadStatus     int    `json:"readStatus"`
}

func NewMessagePayload(m *Message) MessagePayload {
	return MessagePayload{
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		SentTime:       m.SentTime.Unix(),
		ReadStatus:     m.ReadStatus,
	}
}

type RecentMessagesPayload struct {
	ConversationID string           `json:"conversationId"`
	Messages       []MessagePayload `json:"messages"`
}

// Inbound request bodies.

type CreateConversationRequest struct {
	OpponentUserID string `json:"opponentUserId"`
}

type RecentConversationsRequest struct {
	Since *int64 `json:"since,omitempty"`
}

type RecentMessagesRequest struct {
	ConversationID string `json:"conversationId"`
	Since          *int64 `json:"since,omitempty"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	OpponentUserID string `json:"opponentUserId"`
	Content        string `json:"content"`
}

type MarkReadRequest struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type EndVoiceCallRequest struct {
	CallID string `json:"callId"`
}
