package assistant

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careline/careline/internal/platform/auth"
	"github.com/careline/careline/pkg/envelope"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/assistant/chat", h.Chat)
}

type chatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	reply, err := h.svc.Chat(ctx, auth.UserIDFromContext(ctx), req.ConversationID, req.Message)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, reply)
}
