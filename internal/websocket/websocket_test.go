package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"social-app/internal/auth"
	"social-app/internal/chat"
	"social-app/internal/config"
	"social-app/internal/database"
	"social-app/internal/models"
	"social-app/internal/monitoring"
	"social-app/internal/notify"
	"social-app/internal/presence"
	"social-app/internal/proximity"
	"social-app/internal/registry"
	"social-app/internal/registry/registrytest"
	"social-app/pkg/testutil"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type stack struct {
	db         *database.MemoryDB
	reg        *registry.Registry
	auth       *auth.Service
	dispatcher *Dispatcher
	handler    *Handler
}

func newStack() *stack {
	db := database.NewMemoryDB()
	reg := registry.New()
	log := zap.NewNop()
	n := notify.New(reg, db, log, true)
	guard := monitoring.NewGuard(log, monitoring.NewLogReporter(log),
		database.ErrNotFound, chat.ErrNotParticipant, chat.ErrInvalidRequest)
	coord := presence.NewCoordinator(reg, db, proximity.NewService(db), n, guard, log, presence.Options{
		Concurrency:           2,
		BroadcastOnDisconnect: true,
	})
	relay := chat.NewRelay(chat.Stores{
		Users:         db,
		Conversations: db,
		Messages:      db,
		Calls:         db,
		Social:        db,
	}, reg, n, log)
	authn := auth.NewService(db, &config.JWTConfig{Secret: []byte("ws-secret"), ExpiresIn: time.Hour})
	d := NewDispatcher(relay, guard, log)
	return &stack{
		db:         db,
		reg:        reg,
		auth:       authn,
		dispatcher: d,
		handler:    NewHandler(authn, coord, d, 16, log),
	}
}

func (s *stack) register(t *testing.T, name string) *models.LoginResponse {
	t.Helper()
	resp, err := s.auth.Register(context.Background(), &models.RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "password123",
	})
	testutil.IsNil(t, err, "register "+name)
	return resp
}

func TestClientSendFailsFast(t *testing.T) {
	c := NewClient(nil, "alice", 1, zap.NewNop())

	testutil.IsNil(t, c.Send([]byte("a")), "first fits")
	testutil.AssertErr(t, ErrSendBufferFull, c.Send([]byte("b")), "buffer full")

	c.Close()
	c.Close()
	testutil.AssertErr(t, ErrClosed, c.Send([]byte("c")), "closed")
}

func TestClientIDsAreUnique(t *testing.T) {
	a := NewClient(nil, "alice", 1, zap.NewNop())
	b := NewClient(nil, "alice", 1, zap.NewNop())
	testutil.IsTrue(t, a.ID() != b.ID(), "distinct handles")
	testutil.Assert(t, "alice", a.UserID(), "user")
}

func TestDispatchRoutesInboundTypes(t *testing.T) {
	s := newStack()
	s.db.PutUser(&models.User{ID: "alice", Username: "alice"})
	s.db.PutUser(&models.User{ID: "bob", Username: "bob"})
	alice := registrytest.NewConn("alice-1")
	bob := registrytest.NewConn("bob-1")
	s.reg.Register("alice", alice)
	s.reg.Register("bob", bob)
	ctx := context.Background()

	s.dispatcher.Dispatch(ctx, "alice", []byte(`{"type":0,"data":{"opponentUserId":"bob"}}`))
	created := bob.OfType(models.EventConversationCreated)
	testutil.Assert(t, 1, len(created), "conversation created")
	var view models.ConversationView
	testutil.IsNil(t, json.Unmarshal(created[0].Data, &view), "decode view")

	s.dispatcher.Dispatch(ctx, "alice", []byte(fmt.Sprintf(`{"type":4,"data":{"conversationId":%q,"content":"hi"}}`, view.ConversationID)))
	testutil.Assert(t, 1, len(bob.OfType(models.EventMessageSent)), "message relayed")

	s.dispatcher.Dispatch(ctx, "bob", []byte(`{"type":1}`))
	testutil.Assert(t, 1, len(bob.OfType(models.EventRecentConversations)), "recent conversations without data")

	s.dispatcher.Dispatch(ctx, "alice", []byte(`{"type":8,"data":{"opponentUserId":"bob","sdp":"answer"}}`))
	answers := bob.OfType(models.EventWebRTCAnswer)
	testutil.Assert(t, 1, len(answers), "answer relayed as 11")
	testutil.IsTrue(t, strings.Contains(string(answers[0].Data), `"opponentUserId":"alice"`), "rewritten sender")
}

func TestDispatchDropsBadFrames(t *testing.T) {
	s := newStack()
	alice := registrytest.NewConn("alice-1")
	s.reg.Register("alice", alice)
	ctx := context.Background()

	s.dispatcher.Dispatch(ctx, "alice", []byte(`not json`))
	s.dispatcher.Dispatch(ctx, "alice", []byte(`{"type":42,"data":{}}`))
	s.dispatcher.Dispatch(ctx, "alice", []byte(`{"type":4,"data":"oops"}`))
	s.dispatcher.Dispatch(ctx, "alice", []byte(`{"type":2,"data":{"conversationId":"missing"}}`))

	testutil.Assert(t, 0, len(alice.Raw()), "nothing pushed")
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func closeFrame(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	testutil.IsTrue(t, errors.As(err, &ce), fmt.Sprintf("close frame, got %v", err))
	return ce
}

// readUntil returns the first envelope of type want, skipping others.
func readUntil(t *testing.T, conn *websocket.Conn, want models.EventType) registrytest.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env registrytest.Envelope
		testutil.IsNil(t, conn.ReadJSON(&env), fmt.Sprintf("waiting for %s", want))
		if env.Type == want {
			return env
		}
	}
}

func TestHandshakeRejections(t *testing.T) {
	s := newStack()
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	testutil.IsNil(t, err, "dial without token")
	ce := closeFrame(t, conn)
	testutil.Assert(t, CloseMissingCredential, ce.Code, "missing credential code")
	testutil.Assert(t, "missing credential", ce.Text, "missing credential reason")
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL(srv)+"?token=garbage", nil)
	testutil.IsNil(t, err, "dial with bad token")
	ce = closeFrame(t, conn)
	testutil.Assert(t, CloseInvalidCredential, ce.Code, "invalid credential code")
	testutil.Assert(t, "invalid credential", ce.Text, "invalid credential reason")
	conn.Close()

	testutil.Assert(t, 0, s.reg.OnlineUserCount(), "nobody registered")
}

func TestConnectChatDisconnect(t *testing.T) {
	s := newStack()
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+alice.Token)
	aConn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	testutil.IsNil(t, err, "alice dials")
	defer aConn.Close()

	env := readUntil(t, aConn, models.EventUnreadCount)
	testutil.Assert(t, `{"count":0}`, string(env.Data), "self sync unread count")
	testutil.IsTrue(t, s.reg.IsOnline(alice.User.ID), "alice registered")

	bConn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+bob.Token, nil)
	testutil.IsNil(t, err, "bob dials")
	env = readUntil(t, aConn, models.EventOnlineCount)
	testutil.Assert(t, `{"online":2}`, string(env.Data), "alice sees bob arrive")

	frame := fmt.Sprintf(`{"type":0,"data":{"opponentUserId":%q}}`, bob.User.ID)
	testutil.IsNil(t, aConn.WriteMessage(websocket.TextMessage, []byte(frame)), "create conversation")
	readUntil(t, aConn, models.EventConversationCreated)
	readUntil(t, bConn, models.EventConversationCreated)

	bConn.Close()
	env = readUntil(t, aConn, models.EventOnlineCount)
	testutil.Assert(t, `{"online":1}`, string(env.Data), "alice sees bob leave")
	testutil.Assert(t, false, s.reg.IsOnline(bob.User.ID), "bob unregistered")
}
