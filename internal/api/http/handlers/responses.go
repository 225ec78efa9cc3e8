package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tiback/helpdesk/internal/api/dto"
	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/service"
)

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:        ticket.ID,
		ClientID:  ticket.ClientID,
		Title:     ticket.Title,
		State:     ticket.State,
		Priority:  ticket.Priority,
		Rating:    ticket.Rating,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
		ClosedAt:  ticket.ClosedAt,
	}
}

func ticketSummaries(tickets []domain.Ticket) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return items
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		ID:            detail.Ticket.ID,
		ClientID:      detail.Ticket.ClientID,
		Title:         detail.Ticket.Title,
		Description:   detail.Ticket.Description,
		State:         detail.Ticket.State,
		Priority:      detail.Ticket.Priority,
		Rating:        detail.Ticket.Rating,
		RatingComment: detail.Ticket.RatingComment,
		RatedAt:       detail.Ticket.RatedAt,
		CreatedAt:     detail.Ticket.CreatedAt,
		UpdatedAt:     detail.Ticket.UpdatedAt,
		ClosedAt:      detail.Ticket.ClosedAt,
		Trail:         entryResponses(detail.Trail),
	}
	if detail.ActiveAssignment != nil {
		assignment := assignmentResponse(detail.ActiveAssignment)
		resp.Assignment = &assignment
	}
	return resp
}

func assignmentResponse(assignment *domain.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:           assignment.ID,
		TicketID:     assignment.TicketID,
		SupervisorID: assignment.SupervisorID,
		HandlerID:    assignment.HandlerID,
		AssignedAt:   assignment.AssignedAt,
	}
}

func assignmentResponses(assignments []domain.Assignment) []dto.AssignmentResponse {
	items := make([]dto.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		items = append(items, assignmentResponse(&assignments[i]))
	}
	return items
}

func entryResponse(entry *domain.AuditEntry) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:           entry.ID,
		Kind:         entry.Kind,
		ClientID:     entry.ClientID,
		HandlerID:    entry.HandlerID,
		SupervisorID: entry.SupervisorID,
		Body:         entry.Body,
		CreatedAt:    entry.CreatedAt,
	}
}

func entryResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, entryResponse(&entries[i]))
	}
	return items
}

func actorResponse(actor *domain.Actor) dto.ActorResponse {
	return dto.ActorResponse{
		ID:        actor.ID,
		Role:      actor.Role,
		Name:      actor.Name,
		Email:     actor.Email,
		Phone:     actor.Phone,
		Address:   actor.Address,
		Specialty: actor.Specialty,
		Area:      actor.Area,
		CreatedAt: actor.CreatedAt,
	}
}

func parsePage(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
