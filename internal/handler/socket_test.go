package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smstore/backend/internal/auth"
	"github.com/smstore/backend/internal/handler"
	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/ws"
)

// socketVerifier maps "token:<id>" to claims for that subject.
type socketVerifier struct{}

func (socketVerifier) VerifyClaim(token string) (*auth.Claims, error) {
	subject, ok := strings.CutPrefix(token, "token:")
	if !ok {
		return nil, auth.ErrInvalidClaim
	}
	return &auth.Claims{
		Role:             model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}, nil
}

func newSocketServer(t *testing.T) (*httptest.Server, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub()
	h := handler.NewSocketHandler(socketVerifier{}, hub)
	e := echo.New()
	e.GET("/ws", h.Serve)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func waitForConnection(t *testing.T, hub *ws.Hub, subjectID uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount(subjectID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subject %d never registered", subjectID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSocketDeliversEmittedEvents(t *testing.T) {
	srv, hub := newSocketServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "token:42"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	waitForConnection(t, hub, 42)
	hub.Emit(42, "orderUpdate", map[string]any{"orderId": 7})

	var env ws.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	assert.Equal(t, "orderUpdate", env.Event)
}

func TestSocketEventsAreIsolatedPerSubject(t *testing.T) {
	srv, hub := newSocketServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, _, err := websocket.Dial(ctx, wsURL(srv, "token:1"), nil)
	require.NoError(t, err)
	defer alice.Close(websocket.StatusNormalClosure, "done")
	bob, _, err := websocket.Dial(ctx, wsURL(srv, "token:2"), nil)
	require.NoError(t, err)
	defer bob.Close(websocket.StatusNormalClosure, "done")

	waitForConnection(t, hub, 1)
	waitForConnection(t, hub, 2)

	hub.Emit(1, "orderUpdate", map[string]any{"orderId": 7})
	// Flush ordering on bob's connection with a ping; the only frame bob
	// ever sees is the pong.
	require.NoError(t, wsjson.Write(ctx, bob, ws.Envelope{Event: "ping"}))

	var env ws.Envelope
	require.NoError(t, wsjson.Read(ctx, bob, &env))
	assert.Equal(t, "pong", env.Event)

	require.NoError(t, wsjson.Read(ctx, alice, &env))
	assert.Equal(t, "orderUpdate", env.Event)
}

func TestSocketPingPong(t *testing.T) {
	srv, _ := newSocketServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "token:42"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.NoError(t, wsjson.Write(ctx, conn, ws.Envelope{Event: "ping"}))
	var env ws.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	assert.Equal(t, "pong", env.Event)
}

func TestSocketRejectsMissingToken(t *testing.T) {
	srv, _ := newSocketServer(t)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSocketRejectsInvalidToken(t *testing.T) {
	srv, _ := newSocketServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(srv, "forged"), nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestSocketUnregistersOnDisconnect(t *testing.T) {
	srv, hub := newSocketServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "token:42"), nil)
	require.NoError(t, err)
	waitForConnection(t, hub, 42)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount(42) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
