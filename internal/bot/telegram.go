package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/service"
)

// botIsAdmin asks Telegram whether the bot holds admin rights in a group.
func (b *Bot) botIsAdmin(groupID int64) (bool, error) {
	member, err := b.client.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: groupID, UserID: b.selfID},
	})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}
	return service.GroupStatus(member.Status).Privileged(), nil
}

// isChannelMember reports whether the user joined the gate channel. With
// no channel configured everyone passes.
func (b *Bot) isChannelMember(_ context.Context, userID int64) bool {
	if b.opts.ChannelID == 0 && b.opts.ChannelUsername == "" {
		return true
	}
	cfg := tgbotapi.ChatConfigWithUser{ChatID: b.opts.ChannelID, UserID: userID}
	if cfg.ChatID == 0 {
		cfg.SuperGroupUsername = b.opts.ChannelUsername
	}
	member, err := b.client.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: cfg})
	if err != nil {
		b.log.Warn("channel membership check", slog.Int64("user_id", userID), slog.Any("error", err))
		return false
	}
	switch service.GroupStatus(member.Status) {
	case service.StatusCreator, service.StatusAdministrator, service.StatusMember:
		return true
	case service.StatusRestricted:
		return member.IsMember
	default:
		return false
	}
}

// groupTitle is the title lookup used by the periodic group refresh.
func (b *Bot) groupTitle(_ context.Context, groupID int64) (string, error) {
	chat, err := b.client.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: groupID}})
	if err != nil {
		return "", err
	}
	return chat.Title, nil
}
