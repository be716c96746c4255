package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"referral-ledger/internal/repository"
	"referral-ledger/internal/service"
)

const (
	testAdmin int64 = 1
	testSelf  int64 = 999
)

type fakeClient struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	statuses  map[int64]string
	titles    map[int64]string
	failPhoto bool
	failChats map[int64]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{statuses: map[int64]string{}, titles: map[int64]string{}, failChats: map[int64]bool{}}
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.PhotoConfig); ok && f.failPhoto {
		return tgbotapi.Message{}, errors.New("wrong file identifier")
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok && f.failChats[m.ChatID] {
		return tgbotapi.Message{}, errors.New("bot was kicked from the group chat")
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeClient) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[cfg.ChatID]
	if !ok {
		return tgbotapi.ChatMember{}, fmt.Errorf("chat %d not found", cfg.ChatID)
	}
	return tgbotapi.ChatMember{Status: status}, nil
}

func (f *fakeClient) GetChat(cfg tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	title, ok := f.titles[cfg.ChatID]
	if !ok {
		return tgbotapi.Chat{}, fmt.Errorf("chat %d not found", cfg.ChatID)
	}
	return tgbotapi.Chat{ID: cfg.ChatID, Title: title}, nil
}

// texts returns the text of everything sent to chatID, in order.
func (f *fakeClient) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			if m.ChatID == chatID {
				out = append(out, m.Text)
			}
		case tgbotapi.EditMessageTextConfig:
			if m.ChatID == chatID {
				out = append(out, m.Text)
			}
		case tgbotapi.PhotoConfig:
			if m.ChatID == chatID {
				out = append(out, m.Caption)
			}
		case tgbotapi.DocumentConfig:
			if m.ChatID == chatID {
				out = append(out, m.Caption)
			}
		}
	}
	return out
}

func (f *fakeClient) last(t *testing.T, chatID int64) string {
	t.Helper()
	texts := f.texts(chatID)
	require.NotEmpty(t, texts, "nothing sent to %d", chatID)
	return texts[len(texts)-1]
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[int64][]service.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, id int64, n service.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[int64][]service.Notification{}
	}
	r.sent[id] = append(r.sent[id], n)
	return nil
}

func (r *recordingNotifier) to(id int64) []service.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[id]
}

type harness struct {
	bot      *Bot
	client   *fakeClient
	notifier *recordingNotifier
	ledger   *repository.LedgerStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", name), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	ledger, err := repository.NewLedgerStore(context.Background(), db, log, repository.LedgerOptions{PrimaryAdmin: testAdmin})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc := Services{
		Registration: service.NewRegistrationService(ledger, log),
		Membership:   service.NewMembershipService(ledger, notifier, log),
		Settlements:  service.NewSettlementService(ledger, notifier, log),
		Support:      service.NewSupportService(ledger, notifier, log),
		Admin:        service.NewAdminService(ledger, log, testAdmin),
		Digest:       service.NewDigestService(ledger),
	}
	client := newFakeClient()
	b := newBot(client, testSelf, svc, notifier, Options{PrimaryAdmin: testAdmin}, log)
	b.broadcastPause = 0
	return &harness{bot: b, client: client, notifier: notifier, ledger: ledger}
}

func privateChat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "private"}
}

func textMessage(from int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, UserName: fmt.Sprintf("user%d", from)},
		Chat:      privateChat(from),
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return msg
}

func (h *harness) say(t *testing.T, from int64, text string) {
	t.Helper()
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: textMessage(from, text)})
}

func (h *harness) press(t *testing.T, from int64, data string) {
	t.Helper()
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 7, Chat: privateChat(from)},
		Data:    data,
	}})
}

// register walks a user through the whole registration conversation.
func (h *harness) register(t *testing.T, id int64) {
	t.Helper()
	h.say(t, id, "/start")
	for _, v := range []string{"+989123456789", "Sara Ahmadi", "6037991234567890", "123456789012345678901234", "Melli"} {
		h.say(t, id, v)
	}
	require.True(t, h.bot.svc.Registration.IsRegistered(id))
}
