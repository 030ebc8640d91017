package database

import (
	"context"
	"time"

	"social-app/internal/models"
	"social-app/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const userColumns = `id, username, email, avatar_url, longitude, latitude, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var lon, lat *float64
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.AvatarURL, &lon, &lat, &user.CreatedAt); err != nil {
		return nil, err
	}
	if lon != nil && lat != nil {
		user.Location = &models.Location{Longitude: *lon, Latitude: *lat}
	}
	return user, nil
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// User store

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1`

	user := &models.User{}
	var lon, lat *float64
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &lon, &lat, &user.CreatedAt, &user.PasswordHash,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if lon != nil && lat != nil {
		user.Location = &models.Location{Longitude: *lon, Latitude: *lat}
	}
	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, '', NOW())
		RETURNING ` + userColumns

	user, err := scanUser(db.pool.QueryRow(ctx, query, uuid.NewString(), req.Username, req.Email, string(hash)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return user, nil
}

func (db *PostgresDB) UpdateUserLocation(ctx context.Context, id string, loc *models.Location) error {
	var lon, lat *float64
	if loc != nil {
		lon, lat = &loc.Longitude, &loc.Latitude
	}
	tag, err := db.pool.Exec(ctx, `UPDATE users SET longitude = $2, latitude = $3 WHERE id = $1`, id, lon, lat)
	if err != nil {
		return errors.Wrap(err, "failed to update location")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDB) NearestUsers(ctx context.Context, excludeID string, origin models.Location, limit int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id <> $1
		ORDER BY 6371 * 2 * asin(sqrt(
			power(sin(radians(latitude - $3) / 2), 2) +
			cos(radians($3)) * cos(radians(latitude)) * power(sin(radians(longitude - $2) / 2), 2)
		)) ASC NULLS LAST, created_at DESC
		LIMIT $4`

	rows, err := db.pool.Query(ctx, query, excludeID, origin.Longitude, origin.Latitude, limit)
	if err != nil {
		return nil, errors.Wrap(err, "nearest users query")
	}
	return collectUsers(rows)
}

func (db *PostgresDB) RecentUsers(ctx context.Context, excludeID string, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id <> $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := db.pool.Query(ctx, query, excludeID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "recent users query")
	}
	return collectUsers(rows)
}

// Conversation store

const conversationColumns = `id, user_id1, user_id2, last_message_time, last_message_content, created_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(&c.ID, &c.UserID1, &c.UserID2, &c.LastMessageTime, &c.LastMessageContent, &c.CreatedAt)
	return c, err
}

func (db *PostgresDB) CreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	u1, u2 := models.OrderedPair(userA, userB)
	query := `
		INSERT INTO conversations (id, user_id1, user_id2, last_message_time, last_message_content, created_at)
		VALUES ($1, $2, $3, NOW(), '', NOW())
		ON CONFLICT (user_id1, user_id2) DO UPDATE SET user_id1 = EXCLUDED.user_id1
		RETURNING ` + conversationColumns

	c, err := scanConversation(db.pool.QueryRow(ctx, query, uuid.NewString(), u1, u2))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open conversation")
	}
	return c, nil
}

func (db *PostgresDB) FindConversationByPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	u1, u2 := models.OrderedPair(userA, userB)
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE user_id1 = $1 AND user_id2 = $2`

	c, err := scanConversation(db.pool.QueryRow(ctx, query, u1, u2))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (db *PostgresDB) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	c, err := scanConversation(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (db *PostgresDB) ListConversations(ctx context.Context, userID string, since *time.Time) ([]*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE (user_id1 = $1 OR user_id2 = $1)
		  AND ($2::timestamptz IS NULL OR last_message_time >= $2)
		ORDER BY last_message_time DESC`

	rows, err := db.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (db *PostgresDB) UpdateLastMessage(ctx context.Context, id string, at time.Time, content string) error {
	query := `UPDATE conversations SET last_message_time = $2, last_message_content = $3 WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, at, models.TruncateContent(content))
	return errors.Wrap(err, "update last message")
}

// Message store

const messageColumns = `id, conversation_id, sender_id, recipient_id, content, sent_time, read_status`

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Content, &m.SentTime, &m.ReadStatus)
	return m, err
}

func (db *PostgresDB) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := db.pool.Exec(ctx, query, m.ID, m.ConversationID, m.SenderID, m.RecipientID, m.Content, m.SentTime, m.ReadStatus)
	return errors.Wrap(err, "create message")
}

func (db *PostgresDB) FindMessageForRecipient(ctx context.Context, id, conversationID, recipientID string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1 AND conversation_id = $2 AND recipient_id = $3`

	m, err := scanMessage(db.pool.QueryRow(ctx, query, id, conversationID, recipientID))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (db *PostgresDB) MarkMessageRead(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `UPDATE messages SET read_status = $2 WHERE id = $1`, id, models.ReadStatusRead)
	return errors.Wrap(err, "mark message read")
}

func (db *PostgresDB) ListMessages(ctx context.Context, conversationID string, since *time.Time) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		  AND ($2::timestamptz IS NULL OR sent_time >= $2)
		ORDER BY sent_time DESC`

	rows, err := db.pool.Query(ctx, query, conversationID, since)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (db *PostgresDB) CountUnreadMessages(ctx context.Context, conversationID, recipientID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND recipient_id = $2 AND read_status = 0`

	var n int
	err := db.pool.QueryRow(ctx, query, conversationID, recipientID).Scan(&n)
	return n, errors.Wrap(err, "count unread messages")
}

// Notification store

func notificationTable(kind models.NotificationKind) (string, error) {
	switch kind {
	case models.NotificationInteraction:
		return "interaction_notifications", nil
	case models.NotificationStatus:
		return "status_notifications", nil
	case models.NotificationGift:
		return "gift_notifications", nil
	case models.NotificationSystem:
		return "system_notifications", nil
	}
	return "", errors.Errorf("unknown notification kind %q", kind)
}

func (db *PostgresDB) CountUnread(ctx context.Context, userID string, kind models.NotificationKind) (int, error) {
	table, err := notificationTable(kind)
	if err != nil {
		return 0, err
	}

	var n int
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE to_user = $1 AND read_status = 0`
	err = db.pool.QueryRow(ctx, query, userID).Scan(&n)
	return n, errors.Wrapf(err, "count unread %s", kind)
}

func (db *PostgresDB) CreateNotification(ctx context.Context, n *models.Notification) error {
	table, err := notificationTable(n.Kind)
	if err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	query := `
		INSERT INTO ` + table + ` (id, from_user, to_user, content, read_status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`
	_, err = db.pool.Exec(ctx, query, n.ID, n.FromUserID, n.ToUserID, n.Content, n.ReadStatus)
	return errors.Wrapf(err, "create %s notification", n.Kind)
}

// Call store

func (db *PostgresDB) CreateCallRecord(ctx context.Context, rec *models.CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query := `
		INSERT INTO call_records (id, conversation_id, caller_id, callee_id, start_time)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := db.pool.Exec(ctx, query, rec.ID, rec.ConversationID, rec.CallerID, rec.CalleeID, rec.StartTime)
	return errors.Wrap(err, "create call record")
}

func (db *PostgresDB) EndCallRecord(ctx context.Context, id, participantID string, at time.Time) (*models.CallRecord, error) {
	query := `
		UPDATE call_records SET end_time = $3
		WHERE id = $1 AND end_time IS NULL AND (caller_id = $2 OR callee_id = $2)
		RETURNING id, conversation_id, caller_id, callee_id, start_time, end_time`

	rec := &models.CallRecord{}
	err := db.pool.QueryRow(ctx, query, id, participantID, at).Scan(
		&rec.ID, &rec.ConversationID, &rec.CallerID, &rec.CalleeID, &rec.StartTime, &rec.EndTime,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

// Social store

func (db *PostgresDB) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`

	var exists bool
	err := db.pool.QueryRow(ctx, query, followerID, followeeID).Scan(&exists)
	return exists, err
}

func (db *PostgresDB) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2)`

	var exists bool
	err := db.pool.QueryRow(ctx, query, blockerID, blockedID).Scan(&exists)
	return exists, err
}

func (db *PostgresDB) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, followee_id, created_at) VALUES ($1, $2, NOW())
		ON CONFLICT (follower_id, followee_id) DO NOTHING`

	tag, err := db.pool.Exec(ctx, query, followerID, followeeID)
	if err != nil {
		return false, errors.Wrap(err, "follow")
	}
	return tag.RowsAffected() > 0, nil
}

func (db *PostgresDB) CountFollowers(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM follows WHERE followee_id = $1`, userID).Scan(&n)
	return n, err
}

func (db *PostgresDB) RecordVisit(ctx context.Context, visitorID, userID string) error {
	query := `
		INSERT INTO visits (visitor_id, user_id, visited_at) VALUES ($1, $2, NOW())
		ON CONFLICT (visitor_id, user_id) DO UPDATE SET visited_at = NOW()`
	_, err := db.pool.Exec(ctx, query, visitorID, userID)
	return errors.Wrap(err, "record visit")
}

func (db *PostgresDB) CountVisitors(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM visits WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
