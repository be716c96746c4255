package service

import (
	"context"
	"log/slog"

	"referral-ledger/internal/model"
)

// Ledger is the serialized document store every workflow goes through.
type Ledger interface {
	Read() *model.Document
	Mutate(ctx context.Context, fn func(doc *model.Document) error) (*model.Document, error)
}

// Notification is a message for one recipient, optionally carrying a receipt.
type Notification struct {
	Text       string
	Attachment *model.Receipt
}

// Notifier delivers notifications on a best-effort basis.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, n Notification) error
}

// notify sends n and logs a failure. It never returns an error: a committed
// ledger change stands whether or not the recipient is reachable.
func notify(ctx context.Context, log *slog.Logger, notifier Notifier, recipientID int64, n Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, recipientID, n); err != nil {
		log.Warn("notification failed",
			slog.Int64("recipient", recipientID),
			slog.Any("error", err))
	}
}

func notifyAll(ctx context.Context, log *slog.Logger, notifier Notifier, recipients []int64, n Notification) {
	for _, id := range recipients {
		notify(ctx, log, notifier, id, n)
	}
}
