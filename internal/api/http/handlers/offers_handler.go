package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/snoutos/message-router/internal/api/dto"
	"github.com/snoutos/message-router/internal/auth"
	"github.com/snoutos/message-router/internal/service"
)

// OffersHandler exposes the HTTP twin of the SMS accept/decline commands
// plus the expiry sweep and metrics lookup. Both paths share the same
// state machine inside OfferService.
type OffersHandler struct {
	offers  *service.OfferService
	metrics *service.MetricsService
}

// NewOffersHandler constructs handler.
func NewOffersHandler(offers *service.OfferService, metrics *service.MetricsService) *OffersHandler {
	return &OffersHandler{offers: offers, metrics: metrics}
}

// Accept handles POST /offers/accept.
func (h *OffersHandler) Accept(c *fiber.Ctx) error {
	return h.respond(c, true)
}

// Decline handles POST /offers/decline.
func (h *OffersHandler) Decline(c *fiber.Ctx) error {
	return h.respond(c, false)
}

func (h *OffersHandler) respond(c *fiber.Ctx, accept bool) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.OfferActionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.SitterID == "" {
		return fiber.NewError(http.StatusBadRequest, "sitter_id required")
	}

	var outcome *service.OfferOutcome
	var err error
	if accept {
		outcome, err = h.offers.Accept(c.UserContext(), principal.OrgID, req.SitterID)
	} else {
		outcome, err = h.offers.Decline(c.UserContext(), principal.OrgID, req.SitterID)
	}
	if err != nil {
		return err
	}

	resp := dto.OfferOutcomeResponse{
		Changed:         outcome.Changed,
		ResponseSeconds: outcome.ResponseSeconds,
		Message:         outcome.Reply,
	}
	if outcome.Offer != nil {
		offerID := outcome.Offer.ID
		resp.OfferID = &offerID
		resp.Status = outcome.Status
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Expire handles POST /offers/expire, the manual sweep trigger.
func (h *OffersHandler) Expire(c *fiber.Ctx) error {
	expired, err := h.offers.ExpireDue(c.UserContext(), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"expired": expired}})
}

// SitterMetrics handles GET /sitters/:id/metrics.
func (h *OffersHandler) SitterMetrics(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	window, err := h.metrics.Get(c.UserContext(), principal.OrgID, c.Params("id"))
	if err != nil {
		return err
	}
	if window == nil {
		return fiber.NewError(http.StatusNotFound, "no metrics window for sitter")
	}
	return c.JSON(fiber.Map{"data": dto.NewMetricsResponse(*window)})
}
