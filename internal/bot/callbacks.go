package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/service"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ack(cb, "")

	c, ok := parseCallback(cb.Data)
	if !ok {
		b.log.Warn("unknown callback", slog.Int64("user_id", cb.From.ID), slog.String("data", cb.Data))
		return nil
	}
	b.log.Info("callback", slog.Int64("user_id", cb.From.ID), slog.String("action", string(c.action)), slog.String("arg", c.arg))

	switch c.action {
	case actCheckMembership:
		return b.handleStart(ctx, cb.From, cb.Message.Chat.ID)
	case actManualPhone:
		return b.sendWithReplyMarkup(cb.Message.Chat.ID, "⌨️ Type your number with the country code, for example +989123456789.", cancelKeyboard())
	case actEditField:
		return b.startEdit(ctx, cb, service.ProfileField(c.arg))
	case actSettleCode:
		return b.requestSettlement(ctx, cb, c.arg)
	case actDismiss:
		_, err := b.client.Request(tgbotapi.NewDeleteMessage(cb.Message.Chat.ID, cb.Message.MessageID))
		return err
	}

	if !b.svc.Admin.IsAdmin(cb.From.ID) {
		return b.sendText(cb.Message.Chat.ID, userMessage(service.ErrNotAdmin))
	}
	switch c.action {
	case actReceipt:
		return b.startReceipt(cb, c.arg)
	case actApprove:
		return b.approveSettlement(ctx, cb, c.arg)
	case actReject:
		return b.rejectSettlement(ctx, cb, c.arg)
	case actReplyTicket:
		return b.startTicketReply(cb, c.arg)
	case actRemoveLink:
		return b.removeLink(ctx, cb, c.arg)
	case actRemoveAdmin:
		return b.removeAdmin(ctx, cb, c.arg)
	}
	return nil
}
