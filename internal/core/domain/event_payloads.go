package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lorrc/severino-relay/internal/core/validation"
)

// ActorRef identifies a user involved in a ticket event.
type ActorRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// TicketNumber is the human facing ticket number. The main application sends
// it either as a string or as a number; it is always re-encoded as a string.
type TicketNumber string

// UnmarshalJSON accepts a JSON string, a JSON number, or null.
func (n *TicketNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = TicketNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("ticketNumber must be a string or number: %w", err)
	}
	*n = TicketNumber(num.String())
	return nil
}

// TicketRef holds the fields every payload carries.
type TicketRef struct {
	TicketID     string       `json:"ticketId"`
	TicketNumber TicketNumber `json:"ticketNumber,omitempty"`
	Title        string       `json:"title,omitempty"`
	At           string       `json:"at"`
}

func (t TicketRef) validate(v *validation.Validator) {
	v.Required("ticketId", t.TicketID).
		Required("at", t.At).
		Timestamp("at", t.At)
}

func validateActor(v *validation.Validator, field string, actor ActorRef) {
	v.Required(field+".id", actor.ID)
}

// TicketAssignedPayload is sent to the technician a ticket was assigned to.
type TicketAssignedPayload struct {
	TicketRef
	AssignedBy ActorRef `json:"assignedBy"`
	AssignedTo ActorRef `json:"assignedTo"`
}

func (p *TicketAssignedPayload) Kind() EventKind { return EventTicketAssigned }

func (p *TicketAssignedPayload) Validate(v *validation.Validator) {
	p.TicketRef.validate(v)
	validateActor(v, "assignedBy", p.AssignedBy)
	validateActor(v, "assignedTo", p.AssignedTo)
}

// TicketNewPayload announces a newly opened ticket.
type TicketNewPayload struct {
	TicketRef
	OpenedBy ActorRef `json:"openedBy"`
}

func (p *TicketNewPayload) Kind() EventKind { return EventTicketNew }

func (p *TicketNewPayload) Validate(v *validation.Validator) {
	p.TicketRef.validate(v)
	validateActor(v, "openedBy", p.OpenedBy)
}

// ExecutionRegisteredPayload announces that a technician registered work.
type ExecutionRegisteredPayload struct {
	TicketRef
	ExecutedBy ActorRef `json:"executedBy"`
}

func (p *ExecutionRegisteredPayload) Kind() EventKind { return EventExecutionRegistered }

func (p *ExecutionRegisteredPayload) Validate(v *validation.Validator) {
	p.TicketRef.validate(v)
	validateActor(v, "executedBy", p.ExecutedBy)
}

// TicketClosedPayload announces a closed ticket.
type TicketClosedPayload struct {
	TicketRef
	ClosedBy ActorRef `json:"closedBy"`
}

func (p *TicketClosedPayload) Kind() EventKind { return EventTicketClosed }

func (p *TicketClosedPayload) Validate(v *validation.Validator) {
	p.TicketRef.validate(v)
	validateActor(v, "closedBy", p.ClosedBy)
}
