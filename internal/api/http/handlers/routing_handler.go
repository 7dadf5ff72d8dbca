package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/snoutos/message-router/internal/api/dto"
	"github.com/snoutos/message-router/internal/auth"
	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/internal/service"
)

// RoutingHandler exposes simulation, the rule table, and override CRUD.
type RoutingHandler struct {
	routing   *service.RoutingService
	overrides repository.OverrideRepository
	audit     repository.AuditRepository
}

// NewRoutingHandler constructs handler.
func NewRoutingHandler(routing *service.RoutingService, overrides repository.OverrideRepository, audit repository.AuditRepository) *RoutingHandler {
	return &RoutingHandler{routing: routing, overrides: overrides, audit: audit}
}

// Simulate handles POST /routing/simulate. Dry-run only: the live path
// and this endpoint share one evaluator, nothing is persisted here.
func (h *RoutingHandler) Simulate(c *fiber.Ctx) error {
	var req dto.SimulateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.ThreadID == "" {
		return fiber.NewError(http.StatusBadRequest, "thread_id required")
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}

	decision, err := h.routing.Simulate(c.UserContext(), req.ThreadID, at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": decision})
}

// Rules handles GET /routing/rules.
func (h *RoutingHandler) Rules(c *fiber.Ctx) error {
	rules := h.routing.Rules()
	out := make([]dto.RuleResponse, 0, len(rules))
	for i, rule := range rules {
		out = append(out, dto.RuleResponse{
			Priority:  i + 1,
			Name:      rule.Name,
			Condition: rule.Condition,
		})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ruleset_version": service.RulesetVersion,
		"rules":           out,
	}})
}

// CreateOverride handles POST /threads/:threadId/overrides.
func (h *RoutingHandler) CreateOverride(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.OverrideCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Target == "" || req.Reason == "" {
		return fiber.NewError(http.StatusBadRequest, "target and reason required")
	}
	if req.EndsAt != nil && !req.StartsAt.Before(*req.EndsAt) {
		return fiber.NewError(http.StatusBadRequest, "starts_at must be before ends_at")
	}

	override := &domain.RoutingOverride{
		OrgID:    principal.OrgID,
		ThreadID: c.Params("threadId"),
		Target:   req.Target,
		TargetID: req.TargetID,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Reason:   req.Reason,
	}
	if err := h.overrides.Create(c.UserContext(), override); err != nil {
		return err
	}
	h.recordOverride(c, principal, domain.AuditOverrideCreated, override)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewOverrideResponse(*override)})
}

// RemoveOverride handles DELETE /overrides/:id. Removal is soft so old
// routing traces keep pointing at a real row.
func (h *RoutingHandler) RemoveOverride(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	id := c.Params("id")
	override, err := h.overrides.GetByID(c.UserContext(), id)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "override not found")
	}
	if override.OrgID != principal.OrgID {
		return fiber.ErrForbidden
	}
	if err := h.overrides.Remove(c.UserContext(), id, time.Now()); err != nil {
		return err
	}
	h.recordOverride(c, principal, domain.AuditOverrideRemoved, override)
	return c.SendStatus(http.StatusNoContent)
}

// ListOverrides handles GET /threads/:threadId/overrides.
func (h *RoutingHandler) ListOverrides(c *fiber.Ctx) error {
	overrides, err := h.overrides.ListByThread(c.UserContext(), c.Params("threadId"))
	if err != nil {
		return err
	}
	out := make([]dto.OverrideResponse, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, dto.NewOverrideResponse(o))
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *RoutingHandler) recordOverride(c *fiber.Ctx, principal *auth.Principal, eventType domain.AuditEventType, override *domain.RoutingOverride) {
	operatorID := principal.Operator.ID
	overrideID := override.ID
	_ = h.audit.Append(c.UserContext(), &domain.AuditEvent{
		OrgID:      principal.OrgID,
		EventType:  eventType,
		ActorType:  domain.ActorOwner,
		ActorID:    &operatorID,
		EntityType: "routing_override",
		EntityID:   &overrideID,
		Metadata: map[string]any{
			"thread_id": override.ThreadID,
			"target":    override.Target,
			"reason":    override.Reason,
		},
	})
}
