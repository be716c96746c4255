package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/service"
)

// handleBotStatus follows the bot's own rights in a group.
func (b *Bot) handleBotStatus(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) error {
	chat := upd.Chat
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return nil
	}
	if upd.NewChatMember.User != nil && upd.NewChatMember.User.ID != b.selfID {
		return nil
	}
	status := service.GroupStatus(upd.NewChatMember.Status)
	old := service.GroupStatus(upd.OldChatMember.Status)

	change, err := b.svc.Membership.BotStatusChanged(ctx, chat.ID, chat.Title, status)
	if err != nil {
		return err
	}

	title := escape(chat.Title)
	switch change {
	case service.GroupTracked:
		b.notifyAdmins(ctx, fmt.Sprintf("✅ The bot is now an admin in:\n%s (<code>%d</code>)", title, chat.ID))
	case service.GroupUntracked:
		if status == service.StatusLeft || status == service.StatusKicked {
			b.notifyAdmins(ctx, fmt.Sprintf("❌ The bot was removed from:\n%s", title))
		} else {
			b.notifyAdmins(ctx, fmt.Sprintf("⚠️ The bot is no longer an admin in:\n%s", title))
		}
	}

	joinedAsMember := status == service.StatusMember &&
		(old == "" || old == service.StatusLeft || old == service.StatusKicked)
	if joinedAsMember {
		if err := b.sendText(chat.ID, "Thanks for adding me! Please make me an admin so new members can be counted."); err != nil {
			b.log.Warn("promote request", slog.Int64("group_id", chat.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (b *Bot) handleGroupMessage(ctx context.Context, msg *tgbotapi.Message) error {
	switch {
	case len(msg.NewChatMembers) > 0:
		return b.handleNewMembers(ctx, msg)
	case msg.LeftChatMember != nil:
		left := msg.LeftChatMember
		return b.svc.Membership.MemberLeft(ctx, msg.Chat.ID, left.ID, left.ID == b.selfID)
	}
	return nil
}

func (b *Bot) handleNewMembers(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	admin, err := b.botIsAdmin(msg.Chat.ID)
	if err != nil {
		b.log.Error("verify bot admin status", slog.Int64("group_id", msg.Chat.ID), slog.Any("error", err))
		return nil
	}
	if !admin {
		b.log.Info("not an admin, ignoring new members", slog.Int64("group_id", msg.Chat.ID))
		return nil
	}

	ev := service.JoinEvent{
		GroupID:         msg.Chat.ID,
		GroupTitle:      msg.Chat.Title,
		InviterID:       msg.From.ID,
		InviterUsername: msg.From.UserName,
	}
	for _, m := range msg.NewChatMembers {
		if m.IsBot || m.ID == b.selfID {
			continue
		}
		ev.Members = append(ev.Members, service.Member{ID: m.ID, Username: m.UserName})
	}
	if len(ev.Members) == 0 {
		return nil
	}

	res, err := b.svc.Membership.RecordJoin(ctx, ev)
	if err != nil {
		return err
	}
	b.log.Info("members joined",
		slog.Int64("group_id", ev.GroupID),
		slog.Int64("inviter_id", ev.InviterID),
		slog.Int("members", len(ev.Members)),
		slog.Int("new_unique", len(res.NewUnique)),
		slog.Int64("points_added", res.PointsAdded))
	return nil
}
