package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"referral-ledger/internal/model"
)

const digestListLimit = 10

// DigestService builds the daily summary sent to admins.
type DigestService struct {
	ledger Ledger
}

func NewDigestService(ledger Ledger) *DigestService {
	return &DigestService{ledger: ledger}
}

// DailySummary reports what is waiting for the admins. It returns an empty
// string when nothing is pending.
func (s *DigestService) DailySummary(_ context.Context, actor int64, now time.Time) (string, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return "", err
	}

	var pending []*model.Settlement
	for _, set := range doc.Settlements {
		if set.Status == model.SettlementPending {
			pending = append(pending, set)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	var tickets []*model.SupportTicket
	for _, t := range doc.SupportTickets {
		if t.Status == model.TicketOpen {
			tickets = append(tickets, t)
		}
	}
	sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })

	if len(pending) == 0 && len(tickets) == 0 {
		return "", nil
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily admin digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString(fmt.Sprintf("💰 <b>Pending settlements: %d</b>\n", len(pending)))
	for i, set := range pending {
		if i == digestListLimit {
			builder.WriteString(fmt.Sprintf("… and %d more\n", len(pending)-digestListLimit))
			break
		}
		builder.WriteString(formatPendingSettlement(doc, set, now))
	}

	builder.WriteString(fmt.Sprintf("\n📨 <b>Open tickets: %d</b>\n", len(tickets)))
	for i, t := range tickets {
		if i == digestListLimit {
			builder.WriteString(fmt.Sprintf("… and %d more\n", len(tickets)-digestListLimit))
			break
		}
		builder.WriteString(formatOpenTicket(doc, t, now))
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatPendingSettlement(doc *model.Document, set *model.Settlement, now time.Time) string {
	icon := "🟢"
	if set.Receipt != nil {
		icon = "🧾"
	} else if now.Sub(set.CreatedAt) > 48*time.Hour {
		icon = "⚠️"
	}
	return fmt.Sprintf("%s code <code>%d</code> · %s · %s\n",
		icon, set.CodeID, html.EscapeString(doc.User(set.UserID).DisplayName()), age(set.CreatedAt, now))
}

func formatOpenTicket(doc *model.Document, t *model.SupportTicket, now time.Time) string {
	return fmt.Sprintf("#%d · %s · %s\n   📝 %s\n",
		t.ID, html.EscapeString(doc.User(t.UserID).DisplayName()), age(t.CreatedAt, now),
		html.EscapeString(preview(t.Message, 80)))
}

func age(at, now time.Time) string {
	d := now.Sub(at)
	switch {
	case d < time.Hour:
		return "just now"
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
