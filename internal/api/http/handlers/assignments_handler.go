package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/snoutos/message-router/internal/api/dto"
	"github.com/snoutos/message-router/internal/auth"
	"github.com/snoutos/message-router/internal/service"
)

// AssignmentsHandler exposes window CRUD and conflict resolution.
type AssignmentsHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignments *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{assignments: assignments}
}

// CreateWindow handles POST /threads/:threadId/windows.
func (h *AssignmentsHandler) CreateWindow(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.WindowRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	window, err := h.assignments.CreateWindow(c.UserContext(), principal.OrgID, service.WindowInput{
		ThreadID:   c.Params("threadId"),
		SitterID:   req.SitterID,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		BookingRef: req.BookingRef,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewWindowResponse(*window, time.Now())})
}

// UpdateWindow handles PUT /windows/:id.
func (h *AssignmentsHandler) UpdateWindow(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.WindowRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	window, err := h.assignments.UpdateWindow(c.UserContext(), principal.OrgID, c.Params("id"), service.WindowInput{
		SitterID:   req.SitterID,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		BookingRef: req.BookingRef,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWindowResponse(*window, time.Now())})
}

// DeleteWindow handles DELETE /windows/:id. The response carries
// was_active so UIs can warn that live traffic just rerouted.
func (h *AssignmentsHandler) DeleteWindow(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	result, err := h.assignments.DeleteWindow(c.UserContext(), principal.OrgID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"was_active": result.WasActive}})
}

// ListWindows handles GET /threads/:threadId/windows.
func (h *AssignmentsHandler) ListWindows(c *fiber.Ctx) error {
	windows, err := h.assignments.ListWindows(c.UserContext(), c.Params("threadId"))
	if err != nil {
		return err
	}
	now := time.Now()
	out := make([]dto.WindowResponse, 0, len(windows))
	for _, w := range windows {
		out = append(out, dto.NewWindowResponse(w, now))
	}
	return c.JSON(fiber.Map{"data": out})
}

// ListConflicts handles GET /threads/:threadId/conflicts.
func (h *AssignmentsHandler) ListConflicts(c *fiber.Ctx) error {
	conflicts, err := h.assignments.DetectConflicts(c.UserContext(), c.Params("threadId"))
	if err != nil {
		return err
	}
	now := time.Now()
	out := make([]dto.ConflictResponse, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, dto.NewConflictResponse(conflict, now))
	}
	return c.JSON(fiber.Map{"data": out})
}

// ResolveConflict handles POST /threads/:threadId/conflicts/resolve.
func (h *AssignmentsHandler) ResolveConflict(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.ResolveConflictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.ConflictID == "" || req.Strategy == "" {
		return fiber.NewError(http.StatusBadRequest, "conflict_id and strategy required")
	}

	err := h.assignments.ResolveConflict(c.UserContext(), principal.OrgID, c.Params("threadId"), req.ConflictID, req.Strategy)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"resolved": true}})
}
