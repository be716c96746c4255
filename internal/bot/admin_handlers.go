package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/model"
	"referral-ledger/internal/service"
	"referral-ledger/internal/session"
)

func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message, cmd command) error {
	chatID, actor := msg.Chat.ID, msg.From.ID

	switch cmd {
	case cmdAdminPanel, cmdBackToAdmin:
		return b.sendAdminMenu(chatID, "🛠 <b>Admin panel</b>")
	case cmdStats:
		st, err := b.svc.Admin.Stats(actor)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		return b.sendAdminMenu(chatID, formatStats(st))
	case cmdSettlements:
		return b.showPendingSettlements(chatID, actor)
	case cmdTickets:
		return b.showOpenTickets(chatID, actor)
	case cmdLinks:
		return b.sendWithReplyMarkup(chatID, "🔗 Manage promotional links.", linksKeyboard())
	case cmdListLinks:
		return b.sendWithReplyMarkup(chatID, formatLinks(b.svc.Admin.Links()), linksKeyboard())
	case cmdAddLink:
		b.sessions.Begin(actor, session.FlowAddLink, session.StepInput)
		return b.sendWithReplyMarkup(chatID, "🔗 Send the link, for example @channel or https://t.me/channel.", cancelKeyboard())
	case cmdRemoveLink:
		links := b.svc.Admin.Links()
		if len(links) == 0 {
			return b.sendWithReplyMarkup(chatID, formatLinks(links), linksKeyboard())
		}
		return b.sendWithReplyMarkup(chatID, "Choose the link to remove:", removeLinksKeyboard(links))
	case cmdBroadcast:
		b.sessions.Begin(actor, session.FlowBroadcast, session.StepInput)
		return b.sendWithReplyMarkup(chatID, "📢 Send the message to post in every tracked group.", cancelKeyboard())
	case cmdAdmins:
		return b.sendWithReplyMarkup(chatID, "👮 Manage admins.", adminsKeyboard(b.svc.Admin.IsPrimary(actor)))
	case cmdListAdmins:
		admins, err := b.svc.Admin.Admins(actor)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		return b.sendWithReplyMarkup(chatID, formatAdmins(admins, b.opts.PrimaryAdmin), adminsKeyboard(b.svc.Admin.IsPrimary(actor)))
	case cmdAddAdmin:
		b.sessions.Begin(actor, session.FlowAddAdmin, session.StepInput)
		return b.sendWithReplyMarkup(chatID, "👮 Send the numeric user id of the new admin.", cancelKeyboard())
	case cmdRemoveAdmin:
		if !b.svc.Admin.IsPrimary(actor) {
			return b.sendText(chatID, userMessage(service.ErrNotPrimaryAdmin))
		}
		admins, err := b.svc.Admin.Admins(actor)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		if len(admins) <= 1 {
			return b.sendText(chatID, "ℹ️ There are no other admins to remove.")
		}
		return b.sendWithReplyMarkup(chatID, "Choose the admin to remove:", removeAdminsKeyboard(admins, b.opts.PrimaryAdmin))
	default:
		return b.sendAdminMenu(chatID, "🛠 <b>Admin panel</b>")
	}
}

func (b *Bot) showPendingSettlements(chatID, actor int64) error {
	pending, err := b.svc.Settlements.Pending(actor)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if len(pending) == 0 {
		return b.sendAdminMenu(chatID, "✅ No pending settlements.")
	}
	for _, v := range pending {
		if err := b.sendWithReplyMarkup(chatID, formatSettlement(v), settlementKeyboard(v.ID, v.Receipt != nil)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) showOpenTickets(chatID, actor int64) error {
	tickets, err := b.svc.Support.OpenTickets(actor)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if len(tickets) == 0 {
		return b.sendAdminMenu(chatID, "✅ No open tickets.")
	}
	for _, t := range tickets {
		if err := b.sendWithReplyMarkup(chatID, formatTicket(t), ticketKeyboard(t.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleAdminFlow(ctx context.Context, msg *tgbotapi.Message, st session.State) error {
	chatID, actor := msg.Chat.ID, msg.From.ID

	switch st.Flow {
	case session.FlowReceipt:
		receipt, ok := receiptFromMessage(msg)
		if !ok {
			return b.sendText(chatID, "🧾 Send the receipt as a photo or a document, or press Cancel.")
		}
		err := b.svc.Settlements.AttachReceipt(ctx, actor, st.SettlementID, receipt)
		b.sessions.End(actor)
		if err != nil {
			return b.sendAdminMenu(chatID, userMessage(err))
		}
		if err := b.sendAdminMenu(chatID, "🧾 Receipt attached."); err != nil {
			return err
		}
		v, err := b.svc.Settlements.Get(actor, st.SettlementID)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		return b.sendWithReplyMarkup(chatID, formatSettlement(v), settlementKeyboard(v.ID, true))

	case session.FlowTicketReply:
		if msg.Text == "" {
			return b.sendText(chatID, "✍️ Send the reply as text, or press Cancel.")
		}
		_, err := b.svc.Support.Reply(ctx, actor, st.TicketID, msg.Text)
		b.sessions.End(actor)
		if err != nil {
			return b.sendAdminMenu(chatID, userMessage(err))
		}
		return b.sendAdminMenu(chatID, fmt.Sprintf("✅ Reply sent and ticket #%d closed.", st.TicketID))

	case session.FlowBroadcast:
		if msg.Text == "" {
			return b.sendText(chatID, "📢 Send the broadcast as text, or press Cancel.")
		}
		b.sessions.End(actor)
		sent, failed, err := b.broadcast(ctx, actor, msg.Text)
		if err != nil {
			return b.sendAdminMenu(chatID, userMessage(err))
		}
		return b.sendAdminMenu(chatID, formatBroadcastSummary(sent, failed))

	case session.FlowAddLink:
		link, err := b.svc.Admin.AddLink(ctx, actor, msg.Text)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		b.sessions.End(actor)
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("✅ Link %s added.", escape(link)), linksKeyboard())

	case session.FlowAddAdmin:
		id, err := service.ParseAdminID(msg.Text)
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		err = b.svc.Admin.AddAdmin(ctx, actor, id)
		b.sessions.End(actor)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, userMessage(err), adminsKeyboard(b.svc.Admin.IsPrimary(actor)))
		}
		if err := b.notifier.Notify(ctx, id, service.Notification{Text: "👮 You are now an admin of this bot. Send /admin to open the panel."}); err != nil {
			b.log.Warn("notify new admin", slog.Int64("admin_id", id), slog.Any("error", err))
		}
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("✅ User <code>%d</code> is now an admin.", id), adminsKeyboard(b.svc.Admin.IsPrimary(actor)))
	}
	return nil
}

// receiptFromMessage picks the largest photo or the attached document.
func receiptFromMessage(msg *tgbotapi.Message) (model.Receipt, bool) {
	if n := len(msg.Photo); n > 0 {
		p := msg.Photo[n-1]
		return model.Receipt{Kind: model.ReceiptPhoto, FileID: p.FileID, FileUniqueID: p.FileUniqueID}, true
	}
	if d := msg.Document; d != nil {
		return model.Receipt{
			Kind:         model.ReceiptDocument,
			FileID:       d.FileID,
			FileUniqueID: d.FileUniqueID,
			MimeType:     d.MimeType,
			FileName:     d.FileName,
		}, true
	}
	return model.Receipt{}, false
}

// broadcastFailure is a group the broadcast could not be posted to.
type broadcastFailure struct {
	title string
	err   error
}

// broadcast posts text to every tracked group, pausing between posts.
func (b *Bot) broadcast(ctx context.Context, actor int64, text string) (sent int, failed []broadcastFailure, err error) {
	targets, err := b.svc.Admin.BroadcastTargets(actor)
	if err != nil {
		return 0, nil, err
	}
	for i, g := range targets {
		if i > 0 && b.broadcastPause > 0 {
			select {
			case <-ctx.Done():
				return sent, failed, ctx.Err()
			case <-time.After(b.broadcastPause):
			}
		}
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		if _, err := b.client.Send(tgbotapi.NewMessage(g.GroupID, text)); err != nil {
			b.log.Warn("broadcast", slog.Int64("group_id", g.GroupID), slog.Any("error", err))
			failed = append(failed, broadcastFailure{title: g.Title, err: err})
			continue
		}
		sent++
	}
	b.log.Info("broadcast sent", slog.Int64("admin_id", actor), slog.Int("sent", sent), slog.Int("failed", len(failed)))
	return sent, failed, nil
}

func formatBroadcastSummary(sent int, failed []broadcastFailure) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📢 Broadcast finished: %d delivered, %d failed.", sent, len(failed))
	for _, f := range failed {
		fmt.Fprintf(&sb, "\n• %s: %s", escape(f.title), escape(f.err.Error()))
	}
	return sb.String()
}

func (b *Bot) startReceipt(cb *tgbotapi.CallbackQuery, id string) error {
	if _, err := b.svc.Settlements.Get(cb.From.ID, id); err != nil {
		return b.editText(cb.Message.Chat.ID, cb.Message.MessageID, userMessage(err))
	}
	b.sessions.Begin(cb.From.ID, session.FlowReceipt, session.StepInput)
	b.sessions.Update(cb.From.ID, func(s *session.State) { s.SettlementID = id })
	return b.sendWithReplyMarkup(cb.Message.Chat.ID, "🧾 Send the payment receipt as a photo or a document.", cancelKeyboard())
}

func (b *Bot) approveSettlement(ctx context.Context, cb *tgbotapi.CallbackQuery, id string) error {
	set, err := b.svc.Settlements.Approve(ctx, cb.From.ID, id)
	if err != nil {
		return b.sendText(cb.Message.Chat.ID, userMessage(err))
	}
	return b.editText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("✅ Settlement <code>%s</code> approved. Code <code>%d</code> is settled.", escape(set.ID), set.CodeID))
}

func (b *Bot) rejectSettlement(ctx context.Context, cb *tgbotapi.CallbackQuery, id string) error {
	set, err := b.svc.Settlements.Reject(ctx, cb.From.ID, id)
	if err != nil {
		return b.sendText(cb.Message.Chat.ID, userMessage(err))
	}
	return b.editText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("❌ Settlement <code>%s</code> rejected. Code <code>%d</code> stays available.", escape(set.ID), set.CodeID))
}

func (b *Bot) startTicketReply(cb *tgbotapi.CallbackQuery, arg string) error {
	ticketID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil
	}
	t, err := b.svc.Support.Get(cb.From.ID, ticketID)
	if err != nil {
		return b.editText(cb.Message.Chat.ID, cb.Message.MessageID, userMessage(err))
	}
	b.sessions.Begin(cb.From.ID, session.FlowTicketReply, session.StepInput)
	b.sessions.Update(cb.From.ID, func(s *session.State) { s.TicketID = ticketID })
	return b.sendWithReplyMarkup(cb.Message.Chat.ID, formatTicket(t)+"\n\n✍️ Type your reply.", cancelKeyboard())
}

func (b *Bot) removeLink(ctx context.Context, cb *tgbotapi.CallbackQuery, key string) error {
	link, err := b.svc.Admin.RemoveLink(ctx, cb.From.ID, key)
	if err != nil {
		return b.editText(cb.Message.Chat.ID, cb.Message.MessageID, userMessage(err))
	}
	return b.editText(cb.Message.Chat.ID, cb.Message.MessageID, fmt.Sprintf("✅ Link %s removed.", escape(link)))
}

func (b *Bot) removeAdmin(ctx context.Context, cb *tgbotapi.CallbackQuery, arg string) error {
	target, err := service.ParseAdminID(arg)
	if err != nil {
		return nil
	}
	if err := b.svc.Admin.RemoveAdmin(ctx, cb.From.ID, target); err != nil {
		return b.editText(cb.Message.Chat.ID, cb.Message.MessageID, userMessage(err))
	}
	return b.editText(cb.Message.Chat.ID, cb.Message.MessageID, fmt.Sprintf("✅ User <code>%d</code> is no longer an admin.", target))
}
