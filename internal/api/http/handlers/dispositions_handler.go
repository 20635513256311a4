package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/servicedesk/internal/api/dto"
	"github.com/campusdesk/servicedesk/internal/auth"
	"github.com/campusdesk/servicedesk/internal/service"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// DispositionsHandler exposes forwarding and assignment over HTTP.
type DispositionsHandler struct {
	dispositions *service.DispositionService
	assignments  *service.AssignmentService
}

// NewDispositionsHandler returns a new handler instance.
func NewDispositionsHandler(dispositions *service.DispositionService, assignments *service.AssignmentService) *DispositionsHandler {
	return &DispositionsHandler{dispositions: dispositions, assignments: assignments}
}

// Forward handles POST /tickets/:id/forward.
func (h *DispositionsHandler) Forward(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ForwardTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	event, ticket, err := h.dispositions.Forward(c.UserContext(), actor, id, service.ForwardInput{
		ToUserID:       req.ToUserID,
		Reason:         req.Reason,
		Notes:          req.Notes,
		ProgressUpdate: req.ProgressUpdate,
		ActionType:     req.ActionType,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"disposition": dto.FromDisposition(event),
		"ticket":      dto.FromTicket(ticket),
	})
}

// Chain handles GET /tickets/:id/dispositions.
func (h *DispositionsHandler) Chain(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	chain, err := h.dispositions.Chain(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"dispositions": dto.FromDispositions(chain)})
}

// AutoAssign handles POST /tickets/:id/auto-assign.
func (h *DispositionsHandler) AutoAssign(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.AutoAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.assignments.AutoAssign(c.UserContext(), actor, id, service.AssignStrategy(req.Strategy))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Workloads handles GET /assignments/workloads.
func (h *DispositionsHandler) Workloads(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	department := strings.TrimSpace(c.Query("department"))
	if department == "" {
		return apperrors.NewValidationError("department is required", nil)
	}
	snapshots, err := h.assignments.Workloads(c.UserContext(), actor, department)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"workloads": dto.FromWorkloads(snapshots)})
}
