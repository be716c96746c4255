package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"referral-ledger/internal/model"
	"referral-ledger/internal/repository"
	"referral-ledger/internal/service"
)

const dateLayout = "2006-01-02"

func escape(s string) string {
	return html.EscapeString(s)
}

func shortText(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-1]) + "…"
}

var fieldPrompts = map[service.ProfileField]string{
	service.FieldPhone:   "📱 Send your phone number with the button below or type it with the country code (for example +989123456789).",
	service.FieldName:    "👤 Enter your full name.",
	service.FieldCard:    "💳 Enter your 16-digit card number.",
	service.FieldAccount: "🏦 Enter your 24-digit account number (IBAN without the IR prefix is fine).",
	service.FieldBank:    "🏛 Enter the name of your bank.",
}

var fieldTitles = map[service.ProfileField]string{
	service.FieldPhone:   "phone number",
	service.FieldName:    "name",
	service.FieldCard:    "card number",
	service.FieldAccount: "account number",
	service.FieldBank:    "bank name",
}

// userMessage turns a service error into text a user can act on.
func userMessage(err error) string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("⚠️ The %s is not valid: %s. Please try again.", escape(verr.Field), escape(verr.Reason))
	case errors.Is(err, service.ErrNotRegistered):
		return "⚠️ Please register first with /start."
	case errors.Is(err, service.ErrAlreadyRegistered):
		return "ℹ️ You are already registered."
	case errors.Is(err, service.ErrCodeNotFound):
		return "⚠️ This code does not exist."
	case errors.Is(err, service.ErrCodeNotOwned):
		return "⚠️ This code is not yours."
	case errors.Is(err, service.ErrCodeSettled):
		return "ℹ️ This code has already been settled."
	case errors.Is(err, service.ErrSettlementPending):
		return "ℹ️ A settlement for this code is already pending."
	case errors.Is(err, service.ErrSettlementNotFound):
		return "⚠️ Settlement not found."
	case errors.Is(err, service.ErrAlreadyProcessed):
		return "ℹ️ This settlement has already been processed."
	case errors.Is(err, service.ErrReceiptRequired):
		return "⚠️ Attach a payment receipt before approving."
	case errors.Is(err, service.ErrTicketNotFound):
		return "⚠️ Ticket not found."
	case errors.Is(err, service.ErrTicketClosed):
		return "ℹ️ This ticket is already closed."
	case errors.Is(err, service.ErrEmptyMessage):
		return "⚠️ The message is empty."
	case errors.Is(err, service.ErrNotAdmin):
		return "⛔ You do not have admin rights."
	case errors.Is(err, service.ErrNotPrimaryAdmin):
		return "⛔ Only the primary admin can remove admins."
	case errors.Is(err, service.ErrPrimaryAdminImmutable):
		return "⛔ The primary admin cannot be removed."
	case errors.Is(err, service.ErrAdminExists):
		return "ℹ️ This user is already an admin."
	case errors.Is(err, service.ErrAdminNotFound):
		return "⚠️ This user is not an admin."
	case errors.Is(err, service.ErrLinkExists):
		return "ℹ️ This link is already listed."
	case errors.Is(err, service.ErrLinkNotFound):
		return "⚠️ Link not found."
	case errors.Is(err, repository.ErrConcurrentWrite):
		return "⚠️ The ledger is busy, please try again."
	default:
		return "⚠️ Something went wrong, please try again later."
	}
}

func formatProfile(u model.User) string {
	var sb strings.Builder
	sb.WriteString("👤 <b>Your profile</b>\n")
	sb.WriteString(fmt.Sprintf("Name: %s\n", escape(u.Profile.Name)))
	sb.WriteString(fmt.Sprintf("Phone: <code>%s</code>\n", escape(u.Profile.Phone)))
	sb.WriteString(fmt.Sprintf("Card: <code>%s</code>\n", escape(u.Profile.Card)))
	sb.WriteString(fmt.Sprintf("Account: <code>%s</code>\n", escape(u.Profile.Account)))
	sb.WriteString(fmt.Sprintf("Bank: %s", escape(u.Profile.Bank)))
	return sb.String()
}

func formatPoints(u model.User) string {
	next := service.PointsPerCode - u.Points%service.PointsPerCode
	return fmt.Sprintf("⭐ You have <b>%d</b> points.\n🎁 Codes earned: %d\n➡️ %d more unique members until your next code.",
		u.Points, len(u.Codes), next)
}

func formatCodes(codes []service.CodeView) string {
	if len(codes) == 0 {
		return "🎁 You have no reward codes yet. Invite new members to the groups to earn points."
	}
	var sb strings.Builder
	sb.WriteString("🎁 <b>Your codes</b>\n")
	for _, c := range codes {
		status := "🟢 available"
		switch {
		case c.Settled:
			status = "✅ settled"
		case c.Pending:
			status = "⏳ settlement pending"
		}
		sb.WriteString(fmt.Sprintf("• <code>%d</code> · %s · %s\n", c.ID, formatDate(c.IssuedAt), status))
	}
	return strings.TrimSpace(sb.String())
}

func formatSettlement(v service.SettlementView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💳 <b>Settlement</b> <code>%s</code>\n", escape(v.ID)))
	sb.WriteString(fmt.Sprintf("Code: <code>%d</code>\n", v.CodeID))
	sb.WriteString(fmt.Sprintf("User: %s (<code>%d</code>)", escape(v.User.DisplayName()), v.UserID))
	if v.User.Username != "" {
		sb.WriteString(" @" + escape(v.User.Username))
	}
	sb.WriteByte('\n')
	sb.WriteString(fmt.Sprintf("Phone: <code>%s</code>\n", escape(v.User.Profile.Phone)))
	sb.WriteString(fmt.Sprintf("Card: <code>%s</code>\n", escape(v.User.Profile.Card)))
	sb.WriteString(fmt.Sprintf("Account: <code>%s</code>\n", escape(v.User.Profile.Account)))
	sb.WriteString(fmt.Sprintf("Bank: %s\n", escape(v.User.Profile.Bank)))
	sb.WriteString(fmt.Sprintf("Requested: %s", v.CreatedAt.Format(dateLayout+" 15:04")))
	if v.Receipt != nil {
		sb.WriteString("\n🧾 Receipt attached")
	}
	return sb.String()
}

func formatTicket(v service.TicketView) string {
	return fmt.Sprintf("📨 <b>Ticket #%d</b>\nFrom: %s (<code>%d</code>)\nDate: %s\n\n%s",
		v.ID, escape(v.User.DisplayName()), v.UserID, v.CreatedAt.Format(dateLayout+" 15:04"), escape(v.Message))
}

func formatStats(st service.Stats) string {
	return fmt.Sprintf("📊 <b>Statistics</b>\n"+
		"👥 Users: %d (registered: %d)\n"+
		"🧲 Unique members added: %d\n"+
		"🏘 Groups: %d\n"+
		"🎁 Codes issued: %d (settled: %d)\n"+
		"⏳ Pending settlements: %d\n"+
		"📨 Open tickets: %d\n"+
		"🔗 Promotional links: %d",
		st.Users, st.RegisteredUsers, st.UniqueMembers, st.Groups, st.Codes, st.SettledCodes,
		st.PendingSettlements, st.OpenTickets, st.PromotionalLinks)
}

func formatLinks(links []string) string {
	if len(links) == 0 {
		return "🔗 No promotional links yet."
	}
	var sb strings.Builder
	sb.WriteString("🔗 <b>Promotional links</b>\n")
	for i, l := range links {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(l)))
	}
	return strings.TrimSpace(sb.String())
}

func formatAdmins(admins []int64, primary int64) string {
	var sb strings.Builder
	sb.WriteString("👮 <b>Admins</b>\n")
	for _, id := range admins {
		if id == primary {
			sb.WriteString(fmt.Sprintf("• <code>%d</code> (primary)\n", id))
			continue
		}
		sb.WriteString(fmt.Sprintf("• <code>%d</code>\n", id))
	}
	return strings.TrimSpace(sb.String())
}

func helpText(links []string) string {
	var sb strings.Builder
	sb.WriteString("ℹ️ <b>How it works</b>\n")
	sb.WriteString("• Add new people to the groups where this bot is an admin.\n")
	sb.WriteString("• Every person who was never added to any group before earns you 1 point.\n")
	sb.WriteString(fmt.Sprintf("• Every %d points you receive a reward code.\n", service.PointsPerCode))
	sb.WriteString("• Open \"Request settlement\" to get a code paid out to your card.\n")
	sb.WriteString("• Use \"Support\" to contact the admins.\n")
	sb.WriteString("• /cancel stops whatever you are entering.")
	if len(links) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(formatLinks(links))
	}
	return sb.String()
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
