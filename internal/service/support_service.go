package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"referral-ledger/internal/model"
)

const ticketPreviewLen = 500

// TicketView joins a ticket with the requester's profile.
type TicketView struct {
	model.SupportTicket
	User model.User
}

// SupportService keeps user support tickets, which close on the first reply.
type SupportService struct {
	ledger   Ledger
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewSupportService(ledger Ledger, notifier Notifier, log *slog.Logger) *SupportService {
	return &SupportService{ledger: ledger, notifier: notifier, log: log, now: time.Now}
}

// Open files a ticket for a registered user and tells the admins about it.
func (s *SupportService) Open(ctx context.Context, userID int64, message string) (model.SupportTicket, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.SupportTicket{}, ErrEmptyMessage
	}
	var ticket model.SupportTicket
	now := s.now()

	doc, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		user := doc.User(userID)
		if user == nil || !user.Registered {
			return ErrNotRegistered
		}
		t := &model.SupportTicket{
			ID:        doc.NextTicketID,
			UserID:    userID,
			Message:   message,
			CreatedAt: now,
			Status:    model.TicketOpen,
		}
		doc.NextTicketID++
		doc.SupportTickets[model.Key(t.ID)] = t
		ticket = *t
		return nil
	})
	if err != nil {
		return model.SupportTicket{}, err
	}

	s.log.Info("ticket opened", slog.Int64("ticket_id", ticket.ID), slog.Int64("user_id", userID))
	notifyAll(ctx, s.log, s.notifier, doc.Admins, Notification{
		Text: fmt.Sprintf("📨 <b>Support ticket #%d</b>\nFrom: %s (<code>%d</code>)\n\n%s",
			ticket.ID, html.EscapeString(doc.User(userID).DisplayName()), userID,
			html.EscapeString(preview(message, ticketPreviewLen))),
	})
	return ticket, nil
}

// OpenTickets lists open tickets, newest first.
func (s *SupportService) OpenTickets(actor int64) ([]TicketView, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return nil, err
	}
	var out []TicketView
	for _, t := range doc.SupportTickets {
		if t.Status == model.TicketOpen {
			out = append(out, ticketView(doc, t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Get returns an open ticket for an admin about to reply.
func (s *SupportService) Get(actor, ticketID int64) (TicketView, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return TicketView{}, err
	}
	t, err := openTicket(doc, ticketID)
	if err != nil {
		return TicketView{}, err
	}
	return ticketView(doc, t), nil
}

// Reply answers an open ticket and closes it in one mutation.
func (s *SupportService) Reply(ctx context.Context, actor, ticketID int64, response string) (model.SupportTicket, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return model.SupportTicket{}, ErrEmptyMessage
	}
	var closed model.SupportTicket
	now := s.now()

	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		t, err := openTicket(doc, ticketID)
		if err != nil {
			return err
		}
		t.Status = model.TicketClosed
		t.Response = response
		t.RespondedAt = &now
		t.RespondedBy = actor
		closed = *t
		return nil
	})
	if err != nil {
		return model.SupportTicket{}, err
	}

	s.log.Info("ticket closed", slog.Int64("ticket_id", ticketID), slog.Int64("admin_id", actor))
	notify(ctx, s.log, s.notifier, closed.UserID, Notification{
		Text: fmt.Sprintf("📬 <b>Support reply to ticket #%d</b>\n\n%s", ticketID, html.EscapeString(response)),
	})
	return closed, nil
}

func openTicket(doc *model.Document, id int64) (*model.SupportTicket, error) {
	t := doc.Ticket(id)
	if t == nil {
		return nil, ErrTicketNotFound
	}
	if t.Status != model.TicketOpen {
		return nil, ErrTicketClosed
	}
	return t, nil
}

func ticketView(doc *model.Document, t *model.SupportTicket) TicketView {
	v := TicketView{SupportTicket: *t, User: model.User{UserID: t.UserID}}
	if u := doc.User(t.UserID); u != nil {
		v.User = *u
	}
	return v
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
