package models

// NotificationKind selects one of the four independent notification tables.
type NotificationKind string

const (
	NotificationInteraction NotificationKind = "interaction"
	NotificationStatus      NotificationKind = "status"
	NotificationGift        NotificationKind = "gift"
	NotificationSystem      NotificationKind = "system"
)

// UnreadKinds lists every kind summed into the unread aggregate.
var UnreadKinds = []NotificationKind{
	NotificationInteraction,
	NotificationStatus,
	NotificationGift,
	NotificationSystem,
}

type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	FromUserID string           `json:"fromUserId"`
	ToUserID   string           `json:"toUserId"`
	Content    string           `json:"content"`
	ReadStatus int              `json:"readStatus"`
}
