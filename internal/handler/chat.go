package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/smstore/backend/internal/chat"
	"github.com/smstore/backend/internal/middleware"
)

// ChatHandler fronts the chatbot proxy. Permission gating (chat:access)
// and rate limiting are applied by the route.
type ChatHandler struct {
	Chat *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler { return &ChatHandler{Chat: svc} }

type chatReq struct {
	Message string `json:"message"`
}

// Ask forwards the user's message and returns the assistant's reply.
func (h *ChatHandler) Ask(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	var req chatReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message required"})
	}

	reply := h.Chat.Reply(c.Request().Context(), claims.SubjectID(), strings.TrimSpace(req.Message))
	return c.JSON(http.StatusOK, echo.Map{"reply": reply})
}
