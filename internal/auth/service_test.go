package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"social-app/internal/config"
	"social-app/internal/database"
	"social-app/internal/models"
	"social-app/pkg/testutil"

	"github.com/golang-jwt/jwt/v5"
)

func newService() *Service {
	return NewService(database.NewMemoryDB(), &config.JWTConfig{
		Secret:    []byte("test-secret"),
		ExpiresIn: time.Hour,
	})
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	s := newService()
	ctx := context.Background()

	reg, err := s.Register(ctx, &models.RegisterRequest{Username: "  alice ", Email: "alice@example.com", Password: "correct horse"})
	testutil.IsNil(t, err, "register")
	testutil.Assert(t, "alice", reg.User.Username, "username trimmed")

	userID, err := s.Authenticate(reg.Token)
	testutil.IsNil(t, err, "authenticate registration token")
	testutil.Assert(t, reg.User.ID, userID, "subject")

	login, err := s.Login(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "correct horse"})
	testutil.IsNil(t, err, "login")
	testutil.Assert(t, "", login.User.PasswordHash, "hash stripped")

	_, err = s.Login(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "wrong password"})
	testutil.AssertErr(t, ErrInvalidCredentials, err, "bad password")
}

func TestRegisterValidation(t *testing.T) {
	s := newService()
	cases := map[string]models.RegisterRequest{
		"missing fields": {Username: "bob"},
		"bad email":      {Username: "bob", Email: "bob-at-example", Password: "longenough"},
		"short password": {Username: "bob", Email: "bob@example.com", Password: "short"},
		"short username": {Username: "b", Email: "bob@example.com", Password: "longenough"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register(context.Background(), &req)
			testutil.IsTrue(t, err != nil, "rejected")
		})
	}
}

func TestAuthenticateFailures(t *testing.T) {
	s := newService()

	_, err := s.Authenticate("")
	testutil.AssertErr(t, ErrMissingToken, err, "empty")

	_, err = s.Authenticate("not-a-jwt")
	testutil.AssertErr(t, ErrInvalidToken, err, "garbage")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString([]byte("other-secret"))
	testutil.IsNil(t, err, "sign")
	_, err = s.Authenticate(forged)
	testutil.AssertErr(t, ErrInvalidToken, err, "wrong key")

	expired, err := s.generateToken(&models.User{ID: "alice"})
	testutil.IsNil(t, err, "sign")
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Authenticate(expired)
	testutil.AssertErr(t, ErrInvalidToken, err, "expired")
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	testutil.Assert(t, "query-token", TokenFromRequest(r), "query fallback")

	r.Header.Set("Authorization", "Bearer header-token")
	testutil.Assert(t, "header-token", TokenFromRequest(r), "header wins")

	testutil.Assert(t, "", TokenFromRequest(httptest.NewRequest("GET", "/ws", nil)), "none")
}
