package bot

import (
	"context"
	"log/slog"
)

// RefreshGroups updates the titles of tracked groups.
func (b *Bot) RefreshGroups(ctx context.Context) error {
	updated, err := b.svc.Membership.RefreshTitles(ctx, b.groupTitle)
	if err != nil {
		return err
	}
	b.log.Info("group titles refreshed", slog.Int("updated", updated), slog.Int("groups", len(b.svc.Membership.Groups())))
	return nil
}

// SendAdminDigests sends the daily summary to every admin.
func (b *Bot) SendAdminDigests(ctx context.Context) error {
	admins, err := b.svc.Admin.Admins(b.opts.PrimaryAdmin)
	if err != nil {
		return err
	}
	now := b.now()
	for _, id := range admins {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.svc.Digest.DailySummary(ctx, id, now)
		if err != nil {
			b.log.Warn("build digest", slog.Int64("admin_id", id), slog.Any("error", err))
			continue
		}
		if text == "" {
			continue
		}
		if err := b.sendText(id, text); err != nil {
			b.log.Warn("send digest", slog.Int64("admin_id", id), slog.Any("error", err))
		}
	}
	return nil
}
