package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/smstore/backend/internal/middleware"
	"github.com/smstore/backend/internal/ws"
)

// SocketHandler upgrades authenticated clients onto the push channel.
// The claim token is taken from an explicit `token` query parameter or a
// bearer header, with the access cookie as fallback; verification runs
// before the upgrade, so a bad token never reaches an accepted socket.
type SocketHandler struct {
	Verifier middleware.ClaimVerifier
	Hub      *ws.Hub
	// AllowedOrigins restricts cross-origin upgrades to the storefront.
	AllowedOrigins []string
}

func NewSocketHandler(verifier middleware.ClaimVerifier, hub *ws.Hub, origins ...string) *SocketHandler {
	return &SocketHandler{Verifier: verifier, Hub: hub, AllowedOrigins: origins}
}

// Serve performs the handshake and runs the connection's read loop until
// the client goes away. The identity recorded at handshake drives both
// delivery-group membership and the eventual unregister.
func (h *SocketHandler) Serve(c echo.Context) error {
	token := h.tokenFromHandshake(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	claims, err := h.Verifier.VerifyClaim(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	sock, err := websocket.Accept(c.Response().Writer, c.Request(), &websocket.AcceptOptions{
		OriginPatterns: h.AllowedOrigins,
	})
	if err != nil {
		return nil // Accept already wrote the HTTP error
	}

	conn := ws.NewConn(claims.SubjectID(), claims.Role, sock)
	h.Hub.Register(claims.SubjectID(), conn)
	log.Printf("ws: subject %d connected", claims.SubjectID())

	defer func() {
		h.Hub.Unregister(conn)
		conn.Close(websocket.StatusNormalClosure, "bye")
		log.Printf("ws: subject %d disconnected", claims.SubjectID())
	}()

	ctx := c.Request().Context()
	for {
		env, err := conn.ReadEnvelope(ctx)
		if err != nil {
			return nil
		}
		// The only client-initiated frame is the liveness probe, answered
		// on the same connection rather than the whole delivery group.
		if env.Event == "ping" {
			conn.Send(ws.Envelope{Event: "pong"})
		}
	}
}

func (h *SocketHandler) tokenFromHandshake(c echo.Context) string {
	if token := c.QueryParam("token"); token != "" {
		return token
	}
	if header := c.Request().Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(middleware.AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}
