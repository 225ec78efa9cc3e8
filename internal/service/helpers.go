package service

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/events"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// nowFunc is swapped in tests for deterministic timestamps.
var nowFunc = time.Now

// systemEntry builds a system-generated audit entry. The author column
// matching the acting role is set; the body is the canonical marker.
func systemEntry(ticketID string, kind domain.EntryKind, actor domain.ActorRef) *domain.AuditEntry {
	entry := &domain.AuditEntry{
		TicketID: ticketID,
		Kind:     kind,
		Body:     domain.CanonicalBody(kind),
	}
	setAuthor(entry, actor)
	return entry
}

func setAuthor(entry *domain.AuditEntry, actor domain.ActorRef) {
	id := actor.ID
	switch actor.Role {
	case domain.RoleClient:
		entry.ClientID = &id
	case domain.RoleHandler:
		entry.HandlerID = &id
	case domain.RoleSupervisor, domain.RoleAdministrator:
		entry.SupervisorID = &id
	}
}

func eventActor(actor domain.ActorRef) events.Actor {
	return events.Actor{ID: actor.ID, Role: actor.Role}
}

// storage wraps raw storage errors as TRANSACTION_FAILED; domain
// errors pass through untouched.
func storage(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewTransactionFailed(err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// mapNotFound converts a missing-row error into NOT_FOUND for the
// named resource; anything else becomes a storage failure.
func mapNotFound(err error, resource, id string) error {
	if isNoRows(err) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return storage(err)
}

// finalize normalizes whatever escaped the transaction into a domain
// error. Begin/commit failures surface here without a code attached.
func finalize(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewTransactionFailed(err)
}
