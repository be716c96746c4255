package model

import "time"

type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// SupportTicket is a user question waiting for an admin reply.
type SupportTicket struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	Message     string       `json:"message"`
	CreatedAt   time.Time    `json:"date"`
	Status      TicketStatus `json:"status"`
	Response    string       `json:"response,omitempty"`
	RespondedAt *time.Time   `json:"response_date,omitempty"`
	RespondedBy int64        `json:"responded_by,omitempty"`
}

func (t *SupportTicket) clone() *SupportTicket {
	c := *t
	c.RespondedAt = cloneTime(t.RespondedAt)
	return &c
}
