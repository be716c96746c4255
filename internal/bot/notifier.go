package bot

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/model"
	"referral-ledger/internal/service"
)

const captionLimit = 1024

// ErrQueueFull is returned when a notification cannot be queued.
var ErrQueueFull = errors.New("notification queue full")

type delivery struct {
	recipient int64
	n         service.Notification
}

// Notifier delivers notifications from a bounded queue on a single worker.
type Notifier struct {
	client Client
	queue  chan delivery
	log    *slog.Logger
}

func NewNotifier(client Client, size int, log *slog.Logger) *Notifier {
	if size <= 0 {
		size = 1
	}
	return &Notifier{client: client, queue: make(chan delivery, size), log: log}
}

// Notify queues n without blocking.
func (n *Notifier) Notify(_ context.Context, recipientID int64, note service.Notification) error {
	select {
	case n.queue <- delivery{recipient: recipientID, n: note}:
		return nil
	default:
		n.log.Warn("notification dropped", slog.Int64("recipient", recipientID))
		return ErrQueueFull
	}
}

// Run sends queued notifications until ctx is done, then flushes what is
// already queued.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case d := <-n.queue:
			n.deliver(d)
		case <-ctx.Done():
			for {
				select {
				case d := <-n.queue:
					n.deliver(d)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(d delivery) {
	if err := n.send(d); err != nil {
		n.log.Warn("notification failed", slog.Int64("recipient", d.recipient), slog.Any("error", err))
	}
}

func (n *Notifier) send(d delivery) error {
	if a := d.n.Attachment; a != nil {
		err := n.sendAttachment(d.recipient, a, d.n.Text)
		if err == nil {
			return nil
		}
		n.log.Warn("attachment failed, sending text only", slog.Int64("recipient", d.recipient), slog.Any("error", err))
	}
	msg := tgbotapi.NewMessage(d.recipient, d.n.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.client.Send(msg)
	return err
}

func (n *Notifier) sendAttachment(recipient int64, a *model.Receipt, text string) error {
	caption := text
	if utf8.RuneCountInString(caption) > captionLimit {
		msg := tgbotapi.NewMessage(recipient, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.client.Send(msg); err != nil {
			return err
		}
		caption = ""
	}

	file := tgbotapi.FileID(a.FileID)
	var c tgbotapi.Chattable
	switch a.Kind {
	case model.ReceiptPhoto:
		photo := tgbotapi.NewPhoto(recipient, file)
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		c = photo
	default:
		doc := tgbotapi.NewDocument(recipient, file)
		doc.Caption = caption
		doc.ParseMode = tgbotapi.ModeHTML
		c = doc
	}
	_, err := n.client.Send(c)
	return err
}
