package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-app/internal/geo"
	"social-app/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// MemoryDB is an in-process Database, selected with DATABASE_URL=memory://.
// It keeps the same ordering and filtering contracts as PostgresDB.
type MemoryDB struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	conversations map[string]*models.Conversation
	messages      map[string]*models.Message
	notifications map[models.NotificationKind][]*models.Notification
	calls         map[string]*models.CallRecord
	follows       map[[2]string]bool
	blocks        map[[2]string]bool
	visits        map[[2]string]time.Time
	now           func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         make(map[string]*models.User),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
		notifications: make(map[models.NotificationKind][]*models.Notification),
		calls:         make(map[string]*models.CallRecord),
		follows:       make(map[[2]string]bool),
		blocks:        make(map[[2]string]bool),
		visits:        make(map[[2]string]time.Time),
		now:           time.Now,
	}
}

func (db *MemoryDB) Close() error { return nil }

func copyUser(u *models.User) *models.User {
	out := *u
	if u.Location != nil {
		loc := *u.Location
		out.Location = &loc
	}
	return &out
}

// PutUser inserts or replaces a user as-is.
func (db *MemoryDB) PutUser(u *models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = db.now()
	}
	db.users[u.ID] = copyUser(u)
}

// Block records that blocker blocked blocked.
func (db *MemoryDB) Block(blocker, blocked string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.blocks[[2]string{blocker, blocked}] = true
}

func (db *MemoryDB) GetUserByID(_ context.Context, id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (db *MemoryDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, u := range db.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDB) CreateUser(_ context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.Email == req.Email {
			return nil, errors.New("email already registered")
		}
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    db.now(),
	}
	db.users[u.ID] = u
	return copyUser(u), nil
}

func (db *MemoryDB) UpdateUserLocation(_ context.Context, id string, loc *models.Location) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		return ErrNotFound
	}
	if loc == nil {
		u.Location = nil
		return nil
	}
	l := *loc
	u.Location = &l
	return nil
}

func (db *MemoryDB) NearestUsers(_ context.Context, excludeID string, origin models.Location, limit int) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var located, unlocated []*models.User
	for _, u := range db.users {
		if u.ID == excludeID {
			continue
		}
		if u.Location == nil {
			unlocated = append(unlocated, copyUser(u))
		} else {
			located = append(located, copyUser(u))
		}
	}
	sort.SliceStable(located, func(i, j int) bool {
		di, dj := geo.Distance(origin, *located[i].Location), geo.Distance(origin, *located[j].Location)
		if di != dj {
			return di < dj
		}
		return located[i].CreatedAt.After(located[j].CreatedAt)
	})
	sortNewestFirst(unlocated)

	return capUsers(append(located, unlocated...), limit), nil
}

func (db *MemoryDB) RecentUsers(_ context.Context, excludeID string, limit int) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var users []*models.User
	for _, u := range db.users {
		if u.ID != excludeID {
			users = append(users, copyUser(u))
		}
	}
	sortNewestFirst(users)
	return capUsers(users, limit), nil
}

func sortNewestFirst(users []*models.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
}

func capUsers(users []*models.User, limit int) []*models.User {
	if limit >= 0 && len(users) > limit {
		return users[:limit]
	}
	return users
}

func (db *MemoryDB) CreateConversation(_ context.Context, userA, userB string) (*models.Conversation, error) {
	u1, u2 := models.OrderedPair(userA, userB)
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, c := range db.conversations {
		if c.UserID1 == u1 && c.UserID2 == u2 {
			out := *c
			return &out, nil
		}
	}
	now := db.now()
	c := &models.Conversation{ID: uuid.NewString(), UserID1: u1, UserID2: u2, LastMessageTime: now, CreatedAt: now}
	db.conversations[c.ID] = c
	out := *c
	return &out, nil
}

func (db *MemoryDB) FindConversationByPair(_ context.Context, userA, userB string) (*models.Conversation, error) {
	u1, u2 := models.OrderedPair(userA, userB)
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, c := range db.conversations {
		if c.UserID1 == u1 && c.UserID2 == u2 {
			out := *c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDB) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (db *MemoryDB) ListConversations(_ context.Context, userID string, since *time.Time) ([]*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*models.Conversation
	for _, c := range db.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		if since != nil && c.LastMessageTime.Before(*since) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (db *MemoryDB) UpdateLastMessage(_ context.Context, id string, at time.Time, content string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.LastMessageTime = at
	c.LastMessageContent = models.TruncateContent(content)
	return nil
}

func (db *MemoryDB) CreateMessage(_ context.Context, m *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cp := *m
	db.messages[m.ID] = &cp
	return nil
}

func (db *MemoryDB) FindMessageForRecipient(_ context.Context, id, conversationID, recipientID string) (*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.messages[id]
	if !ok || m.ConversationID != conversationID || m.RecipientID != recipientID {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (db *MemoryDB) MarkMessageRead(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.ReadStatus = models.ReadStatusRead
	return nil
}

func (db *MemoryDB) ListMessages(_ context.Context, conversationID string, since *time.Time) ([]*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*models.Message
	for _, m := range db.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if since != nil && m.SentTime.Before(*since) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SentTime.Equal(out[j].SentTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentTime.After(out[j].SentTime)
	})
	return out, nil
}

func (db *MemoryDB) CountUnreadMessages(_ context.Context, conversationID, recipientID string) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, m := range db.messages {
		if m.ConversationID == conversationID && m.RecipientID == recipientID && m.ReadStatus == models.ReadStatusUnread {
			n++
		}
	}
	return n, nil
}

func (db *MemoryDB) CountUnread(_ context.Context, userID string, kind models.NotificationKind) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, note := range db.notifications[kind] {
		if note.ToUserID == userID && note.ReadStatus == models.ReadStatusUnread {
			n++
		}
	}
	return n, nil
}

func (db *MemoryDB) CreateNotification(_ context.Context, n *models.Notification) error {
	if _, err := notificationTable(n.Kind); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	cp := *n
	db.notifications[n.Kind] = append(db.notifications[n.Kind], &cp)
	return nil
}

func (db *MemoryDB) CreateCallRecord(_ context.Context, rec *models.CallRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cp := *rec
	db.calls[rec.ID] = &cp
	return nil
}

func (db *MemoryDB) EndCallRecord(_ context.Context, id, participantID string, at time.Time) (*models.CallRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	rec, ok := db.calls[id]
	if !ok || rec.EndTime != nil || (rec.CallerID != participantID && rec.CalleeID != participantID) {
		return nil, ErrNotFound
	}
	end := at
	rec.EndTime = &end
	cp := *rec
	return &cp, nil
}

func (db *MemoryDB) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.follows[[2]string{followerID, followeeID}], nil
}

func (db *MemoryDB) IsBlocked(_ context.Context, blockerID, blockedID string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.blocks[[2]string{blockerID, blockedID}], nil
}

func (db *MemoryDB) Follow(_ context.Context, followerID, followeeID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := [2]string{followerID, followeeID}
	if db.follows[key] {
		return false, nil
	}
	db.follows[key] = true
	return true, nil
}

func (db *MemoryDB) CountFollowers(_ context.Context, userID string) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for key := range db.follows {
		if key[1] == userID {
			n++
		}
	}
	return n, nil
}

func (db *MemoryDB) RecordVisit(_ context.Context, visitorID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.visits[[2]string{visitorID, userID}] = db.now()
	return nil
}

func (db *MemoryDB) CountVisitors(_ context.Context, userID string) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for key := range db.visits {
		if key[1] == userID {
			n++
		}
	}
	return n, nil
}
