package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/snoutos/message-router/internal/api/dto"
	"github.com/snoutos/message-router/internal/auth"
	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/service"
)

// MessagesHandler exposes the outbound send path and the force-send
// override.
type MessagesHandler struct {
	messages *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messages *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

// Send handles POST /threads/:threadId/messages.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.ToE164 == "" || req.Body == "" {
		return fiber.NewError(http.StatusBadRequest, "to_e164 and body required")
	}

	operatorID := principal.Operator.ID
	event, err := h.messages.SendToThread(c.UserContext(), principal.OrgID, service.SendInput{
		ThreadID: c.Params("threadId"),
		ToE164:   req.ToE164,
		Body:     req.Body,
		Actor:    domain.ActorOwner,
		ActorID:  &operatorID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageEventResponse(*event)})
}

// ForceSend handles POST /messages/:id/force-send. The failed event is
// left untouched; a fresh superseding event records the retry.
func (h *MessagesHandler) ForceSend(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.ForceSendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.ToE164 == "" {
		return fiber.NewError(http.StatusBadRequest, "to_e164 required")
	}

	operatorID := principal.Operator.ID
	event, err := h.messages.ForceSend(c.UserContext(), principal.OrgID, c.Params("id"), req.ToE164, &operatorID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageEventResponse(*event)})
}

// List handles GET /threads/:threadId/messages.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	events, err := h.messages.ListThreadMessages(c.UserContext(), principal.OrgID, c.Params("threadId"), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	out := make([]dto.MessageEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, dto.NewMessageEventResponse(e))
	}
	return c.JSON(fiber.Map{"data": out})
}
