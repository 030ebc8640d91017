package websocket

import (
	"context"
	"net/http"
	"time"

	"social-app/internal/auth"
	"social-app/internal/registry"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Close codes sent when the handshake credential is rejected.
const (
	CloseMissingCredential = 4401
	CloseInvalidCredential = 4403
)

type Authenticator interface {
	Authenticate(token string) (string, error)
}

// Lifecycle is told about connections coming and going.
type Lifecycle interface {
	Connected(ctx context.Context, userID string, conn registry.Conn)
	Disconnected(ctx context.Context, userID string, conn registry.Conn)
	Heartbeat(ctx context.Context, userID string)
}

type Handler struct {
	auth       Authenticator
	presence   Lifecycle
	dispatcher *Dispatcher
	sendBuffer int
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

func NewHandler(authn Authenticator, presence Lifecycle, dispatcher *Dispatcher, sendBuffer int, log *zap.Logger) *Handler {
	return &Handler{
		auth:       authn,
		presence:   presence,
		dispatcher: dispatcher,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
		log: log.Named("ws"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, authErr := h.auth.Authenticate(auth.TokenFromRequest(r))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	if authErr != nil {
		code, reason := CloseInvalidCredential, "invalid credential"
		if errors.Is(authErr, auth.ErrMissingToken) {
			code, reason = CloseMissingCredential, "missing credential"
		}
		h.log.Info("rejecting connection", zap.String("reason", reason), zap.Error(authErr))
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	// The connection outlives the request once hijacked.
	ctx := context.WithoutCancel(r.Context())

	client := NewClient(conn, userID, h.sendBuffer, h.log)
	go client.WritePump()

	h.presence.Connected(ctx, userID, client)
	defer h.presence.Disconnected(ctx, userID, client)

	client.ReadPump(ctx,
		func(ctx context.Context, data []byte) { h.dispatcher.Dispatch(ctx, userID, data) },
		func(ctx context.Context) { h.presence.Heartbeat(ctx, userID) },
	)
}
