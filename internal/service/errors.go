package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// TicketUpdateError reports a consultation that was finished while the
// cascaded queue-ticket update failed. The consultation commit is kept; the
// operator must see the stranded ticket rather than a clean success.
type TicketUpdateError struct {
	TicketID uuid.UUID
	Err      error
}

func (e *TicketUpdateError) Error() string {
	return fmt.Sprintf("consultation finished but ticket %s was not updated: %v", e.TicketID, e.Err)
}

func (e *TicketUpdateError) Unwrap() error {
	return e.Err
}

type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Changes      string
}
