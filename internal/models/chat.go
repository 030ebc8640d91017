package models

import (
	"time"
	"unicode/utf8"
)

const (
	ReadStatusUnread = 0
	ReadStatusRead   = 1

	// MaxSnapshotLength bounds the last-message snapshot kept on a conversation.
	MaxSnapshotLength = 100
)

type Conversation struct {
	ID                 string    `json:"id"`
	UserID1            string    `json:"userId1"`
	UserID2            string    `json:"userId2"`
	LastMessageTime    time.Time `json:"lastMessageTime"`
	LastMessageContent string    `json:"lastMessageContent"`
	CreatedAt          time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID is one of the two sides.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.UserID1 == userID || c.UserID2 == userID
}

// OpponentOf returns the other side of the conversation for userID.
func (c *Conversation) OpponentOf(userID string) string {
	if c.UserID1 == userID {
		return c.UserID2
	}
	return c.UserID1
}

// OrderedPair returns the two ids in the stable storage order.
func OrderedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	Content        string    `json:"content"`
	SentTime       time.Time `json:"sentTime"`
	ReadStatus     int       `json:"readStatus"`
}

type CallRecord struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	CallerID       string     `json:"callerId"`
	CalleeID       string     `json:"calleeId"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
}

// TruncateContent cuts content to MaxSnapshotLength runes, appending an
// ellipsis when something was cut.
func TruncateContent(content string) string {
	if utf8.RuneCountInString(content) <= MaxSnapshotLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:MaxSnapshotLength]) + "..."
}
