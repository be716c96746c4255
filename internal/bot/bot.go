package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/service"
	"referral-ledger/internal/session"
)

const updateWorkers = 8

// Client is the part of the Telegram API the bot and the notifier use.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Services groups the workflows the bot drives.
type Services struct {
	Registration *service.RegistrationService
	Membership   *service.MembershipService
	Settlements  *service.SettlementService
	Support      *service.SupportService
	Admin        *service.AdminService
	Digest       *service.DigestService
}

// Options carry deployment settings the handlers need.
type Options struct {
	PrimaryAdmin    int64
	ChannelID       int64
	ChannelUsername string
	ChannelLink     string
}

// defaultBroadcastPause spaces group posts to stay under Telegram flood limits.
const defaultBroadcastPause = 300 * time.Millisecond

// Bot aggregates Telegram API with services.
type Bot struct {
	api      *tgbotapi.BotAPI
	client   Client
	selfID   int64
	svc      Services
	notifier service.Notifier
	sessions *session.Table
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	broadcastPause time.Duration
}

func New(api *tgbotapi.BotAPI, svc Services, notifier service.Notifier, opts Options, log *slog.Logger) *Bot {
	b := newBot(api, api.Self.ID, svc, notifier, opts, log)
	b.api = api
	log.Info("bot authorized", slog.String("account", api.Self.UserName))
	return b
}

func newBot(client Client, selfID int64, svc Services, notifier service.Notifier, opts Options, log *slog.Logger) *Bot {
	return &Bot{
		client:   client,
		selfID:   selfID,
		svc:      svc,
		notifier: notifier,
		sessions: session.NewTable(),
		opts:     opts,
		log:      log,
		now:      time.Now,

		broadcastPause: defaultBroadcastPause,
	}
}

// Start begins polling updates until ctx is cancelled. Updates from the
// same user or group are handled in order; different ones run in parallel.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message", "callback_query", "my_chat_member"}
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	b.dispatch(ctx, updates)
	return nil
}

func (b *Bot) dispatch(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	shards := make([]chan tgbotapi.Update, updateWorkers)
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, 16)
		wg.Add(1)
		go func(in <-chan tgbotapi.Update) {
			defer wg.Done()
			for update := range in {
				b.handleUpdate(ctx, update)
			}
		}(shards[i])
	}

	for update := range updates {
		key := routingKey(update)
		if key < 0 {
			key = -key
		}
		shards[key%updateWorkers] <- update
	}
	for _, ch := range shards {
		close(ch)
	}
	wg.Wait()
}

func routingKey(update tgbotapi.Update) int64 {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	case update.MyChatMember != nil:
		return update.MyChatMember.Chat.ID
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	default:
		return 0
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.MyChatMember != nil:
		err = b.handleBotStatus(ctx, update.MyChatMember)
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		if update.Message.Chat.IsPrivate() {
			err = b.handleMessage(ctx, update.Message)
		} else if update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup() {
			err = b.handleGroupMessage(ctx, update.Message)
		}
	}
	if err != nil {
		b.log.Error("handle update", slog.Int("update_id", update.UpdateID), slog.Any("error", err))
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, nil)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.client.Send(msg)
	return err
}

func (b *Bot) sendMainMenu(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendAdminMenu(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, adminKeyboard())
}

func (b *Bot) editText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.client.Send(edit)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.client.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn("callback ack", slog.Any("error", err))
	}
}

// notifyAdmins reaches every admin through the notification queue.
func (b *Bot) notifyAdmins(ctx context.Context, text string) {
	admins, err := b.svc.Admin.Admins(b.opts.PrimaryAdmin)
	if err != nil {
		b.log.Warn("list admins", slog.Any("error", err))
		return
	}
	for _, id := range admins {
		if err := b.notifier.Notify(ctx, id, service.Notification{Text: text}); err != nil {
			b.log.Warn("notify admin", slog.Int64("admin_id", id), slog.Any("error", err))
		}
	}
}
