package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/servicedesk/internal/api/dto"
	"github.com/campusdesk/servicedesk/internal/auth"
	"github.com/campusdesk/servicedesk/internal/domain"
	"github.com/campusdesk/servicedesk/internal/repository"
	"github.com/campusdesk/servicedesk/internal/service"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle over HTTP.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
}

// NewTicketsHandler returns a new handler instance.
func NewTicketsHandler(lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Type:        req.Type,
		Department:  req.Department,
		Priority:    req.Priority,
		IsSimple:    req.IsSimple,
		Tags:        req.Tags,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromTicket(ticket))
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.GetTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// List handles GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	filter := parseTicketFilter(c)
	tickets, total, err := h.lifecycle.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"tickets": dto.FromTickets(tickets),
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Update handles PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.UpdateTicket(c.UserContext(), actor, id, patchFromRequest(req))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Progress handles PATCH /tickets/:id/progress.
func (h *TicketsHandler) Progress(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.UpdateProgress(c.UserContext(), actor, id, req.Progress)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// QuickResolve handles POST /tickets/:id/quick-resolve.
func (h *TicketsHandler) QuickResolve(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.QuickResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.QuickResolve(c.UserContext(), actor, id, req.Solution)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Reassign handles POST /tickets/:id/reassign.
func (h *TicketsHandler) Reassign(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ReassignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.Reassign(c.UserContext(), actor, id, req.AssigneeID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Cancel handles POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.CancelTicket(c.UserContext(), actor, id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Reopen handles POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.ReopenTicket(c.UserContext(), actor, id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Rate handles POST /tickets/:id/rate.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.RateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.lifecycle.RateTicket(c.UserContext(), actor, id, req.Rating)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// BulkUpdate handles POST /tickets/bulk.
func (h *TicketsHandler) BulkUpdate(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	var req dto.BulkUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if len(req.TicketIDs) == 0 {
		return apperrors.NewValidationError("ticket_ids is required", nil)
	}
	results := h.lifecycle.BulkUpdate(c.UserContext(), actor, req.TicketIDs, patchFromRequest(req.Update))

	out := make([]fiber.Map, 0, len(results))
	for _, result := range results {
		entry := fiber.Map{"ticket_id": result.TicketID, "ok": result.Err == nil}
		if result.Err != nil {
			domainErr := apperrors.ToDomainError(result.Err)
			entry["error"] = fiber.Map{"code": domainErr.Code, "message": domainErr.Message}
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"results": out})
}

// Stats handles GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	stats, err := h.lifecycle.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// AuditTrail handles GET /tickets/:id/audit.
func (h *TicketsHandler) AuditTrail(c *fiber.Ctx) error {
	actor, _ := auth.UserFromContext(c)
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	entries, err := h.lifecycle.AuditTrail(c.UserContext(), actor, id,
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func patchFromRequest(req dto.UpdateTicketRequest) service.TicketPatch {
	return service.TicketPatch{
		Subject:             req.Subject,
		Description:         req.Description,
		Category:            req.Category,
		Subcategory:         req.Subcategory,
		Type:                req.Type,
		Department:          req.Department,
		Priority:            req.Priority,
		Status:              req.Status,
		Progress:            req.Progress,
		EstimatedCompletion: req.EstimatedCompletion,
		Tags:                req.Tags,
		Metadata:            req.Metadata,
	}
}

func parseTicketFilter(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{
		Limit:  c.QueryInt("limit", 10),
		Offset: c.QueryInt("offset", 0),
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status := domain.TicketStatus(v)
		filter.Status = &status
	}
	if v := strings.TrimSpace(c.Query("priority")); v != "" {
		priority := domain.TicketPriority(v)
		filter.Priority = &priority
	}
	if v := strings.TrimSpace(c.Query("category")); v != "" {
		filter.Category = &v
	}
	if v := strings.TrimSpace(c.Query("department")); v != "" {
		filter.Department = &v
	}
	if v := strings.TrimSpace(c.Query("search")); v != "" {
		filter.SearchTerm = &v
	}
	if v, err := strconv.ParseInt(c.Query("assigned_to"), 10, 64); err == nil && v > 0 {
		filter.AssignedTo = &v
	}
	return filter
}
