package handlers

import (
	"errors"
	"strconv"

	"github.com/bizdesk/bizdesk-backend/internal/api/response"
	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"github.com/bizdesk/bizdesk-backend/internal/services"
	"github.com/bizdesk/bizdesk-backend/internal/validator"
	"github.com/labstack/echo/v4"
)

// TicketHandler handles ticket-related HTTP requests
type TicketHandler struct {
	tickets repository.TicketRepository
	service *services.TicketService
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(tickets repository.TicketRepository, service *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets, service: service}
}

// ReplyRequest represents the request body for an agent reply
type ReplyRequest struct {
	AgentEmail string `json:"agent_email"`
	AgentName  string `json:"agent_name,omitempty"`
	Body       string `json:"body"`
}

// NoteRequest represents the request body for an internal note
type NoteRequest struct {
	AgentEmail string `json:"agent_email"`
	AgentName  string `json:"agent_name,omitempty"`
	Body       string `json:"body"`
}

// StatusRequest represents the request body for a status change
type StatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/v1/tickets
func (h *TicketHandler) List(c echo.Context) error {
	tenantID := c.QueryParam("tenant_id")
	if tenantID == "" {
		return response.BadRequest(c, "tenant_id is required")
	}

	var status models.TicketStatus
	if raw := c.QueryParam("status"); raw != "" {
		status = models.TicketStatus(raw)
		if !status.Valid() {
			return response.BadRequest(c, "unknown status filter")
		}
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = validator.ValidatePagination(limit, offset)

	tickets, total, err := h.tickets.List(c.Request().Context(), tenantID, status, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list tickets")
	}
	return response.Paginated(c, tickets, total, limit, offset)
}

// Get handles GET /api/v1/tickets/:id. The id may be the internal uuid or
// the human-facing ticket number.
func (h *TicketHandler) Get(c echo.Context) error {
	id := c.Param("id")

	ticket, err := h.tickets.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		ticket, err = h.tickets.GetByNumber(c.Request().Context(), id)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "ticket not found")
		}
		return response.InternalError(c, "failed to load ticket")
	}
	return response.Success(c, ticket)
}

// Reply handles POST /api/v1/tickets/:id/reply
func (h *TicketHandler) Reply(c echo.Context) error {
	var req ReplyRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Body == "" {
		return response.BadRequest(c, "body is required")
	}
	if err := validator.ValidateEmail(req.AgentEmail); err != nil {
		return response.BadRequest(c, "agent_email must be a valid email address")
	}

	msg, err := h.service.RecordReply(c.Request().Context(),
		c.Param("id"), validator.NormalizeEmail(req.AgentEmail), req.AgentName, req.Body)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return response.NotFound(c, "ticket not found")
		}
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

// AddNote handles POST /api/v1/tickets/:id/notes
func (h *TicketHandler) AddNote(c echo.Context) error {
	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Body == "" {
		return response.BadRequest(c, "body is required")
	}
	if err := validator.ValidateEmail(req.AgentEmail); err != nil {
		return response.BadRequest(c, "agent_email must be a valid email address")
	}

	msg, err := h.service.AddNote(c.Request().Context(),
		c.Param("id"), validator.NormalizeEmail(req.AgentEmail), req.AgentName, req.Body)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return response.NotFound(c, "ticket not found")
		}
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

// ChangeStatus handles PATCH /api/v1/tickets/:id/status
func (h *TicketHandler) ChangeStatus(c echo.Context) error {
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	ticket, err := h.service.ChangeStatus(c.Request().Context(),
		c.Param("id"), models.TicketStatus(req.Status))
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return response.NotFound(c, "ticket not found")
		}
		return response.Error(c, err)
	}
	return response.Success(c, ticket)
}
