package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/model"
	"referral-ledger/internal/service"
	"referral-ledger/internal/session"
)

// registrationSteps is the order in which a new profile is collected.
var registrationSteps = []struct {
	step  session.Step
	field service.ProfileField
}{
	{session.StepPhone, service.FieldPhone},
	{session.StepName, service.FieldName},
	{session.StepCard, service.FieldCard},
	{session.StepAccount, service.FieldAccount},
	{session.StepBank, service.FieldBank},
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	userID := msg.From.ID

	cmd := resolveCommand(msg)
	if cmd == cmdNone && msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
	if cmd != cmdNone {
		flow := b.sessions.End(userID)
		if cmd == cmdCancel {
			return b.sendMenuFor(userID, msg.Chat.ID, "↩️ Cancelled.")
		}
		b.log.Info("command",
			slog.Int64("user_id", userID),
			slog.Int("command", int(cmd)),
			slog.String("interrupted_flow", string(flow)))
		return b.handleCommand(ctx, msg, cmd)
	}

	if st := b.sessions.Get(userID); st.Flow != session.FlowNone {
		return b.handleFlow(ctx, msg, st)
	}

	return b.sendText(msg.Chat.ID, "I did not understand that. Use the menu below or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, cmd command) error {
	if cmd.adminOnly() || cmd == cmdAdminPanel {
		if !b.svc.Admin.IsAdmin(msg.From.ID) {
			return b.sendText(msg.Chat.ID, userMessage(service.ErrNotAdmin))
		}
		return b.handleAdminCommand(ctx, msg, cmd)
	}

	switch cmd {
	case cmdStart:
		return b.handleStart(ctx, msg.From, msg.Chat.ID)
	case cmdHelp:
		return b.sendMainMenu(msg.Chat.ID, helpText(b.svc.Admin.Links()))
	case cmdUserMenu:
		return b.sendMainMenu(msg.Chat.ID, "🔹 Main menu")
	}

	user, ok := b.registeredUser(ctx, msg.From, msg.Chat.ID)
	if !ok {
		return nil
	}
	switch cmd {
	case cmdPoints:
		return b.sendMainMenu(msg.Chat.ID, formatPoints(user))
	case cmdCodes:
		return b.sendMainMenu(msg.Chat.ID, formatCodes(b.svc.Settlements.Codes(user.UserID)))
	case cmdSettle:
		return b.handleSettleMenu(msg.Chat.ID, user.UserID)
	case cmdSupport:
		b.sessions.Begin(user.UserID, session.FlowSupport, session.StepInput)
		return b.sendWithReplyMarkup(msg.Chat.ID, "📨 Write your message for the support team.", cancelKeyboard())
	case cmdEditProfile:
		return b.sendWithReplyMarkup(msg.Chat.ID, formatProfile(user)+"\n\nWhat would you like to change?", editProfileKeyboard())
	default:
		return b.sendMainMenu(msg.Chat.ID, "🔹 Main menu")
	}
}

// registeredUser sends the right hint and reports false when the sender
// cannot use member features yet.
func (b *Bot) registeredUser(ctx context.Context, from *tgbotapi.User, chatID int64) (model.User, bool) {
	if !b.checkChannel(ctx, from.ID, chatID) {
		return model.User{}, false
	}
	user, ok := b.svc.Registration.User(from.ID)
	if !ok || !user.Registered {
		if err := b.sendText(chatID, userMessage(service.ErrNotRegistered)); err != nil {
			b.log.Warn("send", slog.Any("error", err))
		}
		return model.User{}, false
	}
	return user, true
}

// checkChannel asks the user to join the gate channel when one is set.
func (b *Bot) checkChannel(ctx context.Context, userID, chatID int64) bool {
	if b.svc.Admin.IsAdmin(userID) || b.isChannelMember(ctx, userID) {
		return true
	}
	text := fmt.Sprintf("🔔 Please join %s first to use this bot.", escape(b.opts.ChannelUsername))
	if err := b.sendWithReplyMarkup(chatID, text, channelKeyboard(b.opts.ChannelLink)); err != nil {
		b.log.Warn("send", slog.Any("error", err))
	}
	return false
}

func (b *Bot) handleStart(ctx context.Context, from *tgbotapi.User, chatID int64) error {
	if !b.checkChannel(ctx, from.ID, chatID) {
		return nil
	}
	if b.svc.Registration.IsRegistered(from.ID) {
		if b.svc.Admin.IsAdmin(from.ID) {
			return b.sendMainMenu(chatID, "👋 Welcome back! Use /admin for the admin panel.")
		}
		return b.sendMainMenu(chatID, "👋 Welcome back! Choose an option from the menu below.")
	}

	b.sessions.Begin(from.ID, session.FlowRegistration, session.StepPhone)
	if err := b.sendWithReplyMarkup(chatID, "👋 Welcome! Let's register you.\n\n"+fieldPrompts[service.FieldPhone], contactKeyboard()); err != nil {
		return err
	}
	return b.sendWithReplyMarkup(chatID, "No button? You can type the number yourself.", manualPhoneKeyboard())
}

func (b *Bot) handleFlow(ctx context.Context, msg *tgbotapi.Message, st session.State) error {
	switch st.Flow {
	case session.FlowRegistration:
		return b.handleRegistrationStep(ctx, msg, st)
	case session.FlowEditProfile:
		return b.handleEditInput(ctx, msg, st)
	case session.FlowSupport:
		return b.handleSupportMessage(ctx, msg)
	case session.FlowReceipt, session.FlowTicketReply, session.FlowBroadcast, session.FlowAddLink, session.FlowAddAdmin:
		if !b.svc.Admin.IsAdmin(msg.From.ID) {
			b.sessions.End(msg.From.ID)
			return b.sendMainMenu(msg.Chat.ID, userMessage(service.ErrNotAdmin))
		}
		return b.handleAdminFlow(ctx, msg, st)
	default:
		b.sessions.End(msg.From.ID)
		return nil
	}
}

// profileInput extracts a field value from a message. Shared contacts are
// accepted for the phone when they belong to the sender. On failure it
// returns a hint for the user instead.
func profileInput(msg *tgbotapi.Message, field service.ProfileField) (value, hint string) {
	if field == service.FieldPhone && msg.Contact != nil {
		if msg.Contact.UserID != 0 && msg.Contact.UserID != msg.From.ID {
			return "", "⚠️ Please share your own contact, not someone else's."
		}
		return service.NormalizeContactPhone(msg.Contact.PhoneNumber), ""
	}
	if msg.Text == "" {
		return "", "⚠️ Please send the value as a text message."
	}
	return msg.Text, ""
}

func (b *Bot) handleRegistrationStep(ctx context.Context, msg *tgbotapi.Message, st session.State) error {
	idx := -1
	for i, s := range registrationSteps {
		if s.step == st.Step {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.sessions.End(msg.From.ID)
		return nil
	}
	field := registrationSteps[idx].field

	raw, hint := profileInput(msg, field)
	if hint != "" {
		return b.sendText(msg.Chat.ID, hint)
	}
	value, err := service.ValidateField(field, raw)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}

	var draft model.Profile
	last := idx == len(registrationSteps)-1
	b.sessions.Update(msg.From.ID, func(s *session.State) {
		setProfileField(&s.Draft, field, value)
		if !last {
			s.Step = registrationSteps[idx+1].step
		}
		draft = s.Draft
	})

	if !last {
		return b.sendWithReplyMarkup(msg.Chat.ID, fieldPrompts[registrationSteps[idx+1].field], cancelKeyboard())
	}

	user, err := b.svc.Registration.Register(ctx, msg.From.ID, msg.From.UserName, draft)
	b.sessions.End(msg.From.ID)
	if err != nil {
		return b.sendMainMenu(msg.Chat.ID, userMessage(err))
	}
	return b.sendMainMenu(msg.Chat.ID, "✅ Registration complete!\n\n"+formatProfile(user))
}

func setProfileField(p *model.Profile, field service.ProfileField, value string) {
	switch field {
	case service.FieldPhone:
		p.Phone = value
	case service.FieldName:
		p.Name = value
	case service.FieldCard:
		p.Card = value
	case service.FieldAccount:
		p.Account = value
	case service.FieldBank:
		p.Bank = value
	}
}

func (b *Bot) startEdit(ctx context.Context, cb *tgbotapi.CallbackQuery, field service.ProfileField) error {
	if _, ok := fieldPrompts[field]; !ok {
		return nil
	}
	if _, ok := b.registeredUser(ctx, cb.From, cb.Message.Chat.ID); !ok {
		return nil
	}
	b.sessions.Begin(cb.From.ID, session.FlowEditProfile, session.StepInput)
	b.sessions.Update(cb.From.ID, func(s *session.State) { s.Field = string(field) })
	markup := interface{}(cancelKeyboard())
	if field == service.FieldPhone {
		markup = contactKeyboard()
	}
	return b.sendWithReplyMarkup(cb.Message.Chat.ID, fieldPrompts[field], markup)
}

func (b *Bot) handleEditInput(ctx context.Context, msg *tgbotapi.Message, st session.State) error {
	field := service.ProfileField(st.Field)
	raw, hint := profileInput(msg, field)
	if hint != "" {
		return b.sendText(msg.Chat.ID, hint)
	}
	user, err := b.svc.Registration.UpdateField(ctx, msg.From.ID, field, raw)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return b.sendText(msg.Chat.ID, userMessage(err))
		}
		b.sessions.End(msg.From.ID)
		return b.sendMainMenu(msg.Chat.ID, userMessage(err))
	}
	b.sessions.End(msg.From.ID)
	return b.sendMainMenu(msg.Chat.ID, fmt.Sprintf("✅ Your %s was updated.\n\n%s", fieldTitles[field], formatProfile(user)))
}

func (b *Bot) handleSupportMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Text == "" {
		return b.sendText(msg.Chat.ID, "⚠️ Please send your question as text.")
	}
	ticket, err := b.svc.Support.Open(ctx, msg.From.ID, msg.Text)
	b.sessions.End(msg.From.ID)
	if err != nil {
		return b.sendMainMenu(msg.Chat.ID, userMessage(err))
	}
	return b.sendMainMenu(msg.Chat.ID, fmt.Sprintf("✅ Your message was sent to support as ticket #%d. We will reply here.", ticket.ID))
}

func (b *Bot) handleSettleMenu(chatID, userID int64) error {
	codes := b.svc.Settlements.UnsettledCodes(userID)
	if len(codes) == 0 {
		return b.sendMainMenu(chatID, "ℹ️ You have no codes available for settlement.")
	}
	ids := make([]int64, 0, len(codes))
	for _, c := range codes {
		ids = append(ids, c.ID)
	}
	return b.sendWithReplyMarkup(chatID, "💰 Choose the code you want to settle:", settleCodesKeyboard(ids))
}

func (b *Bot) requestSettlement(ctx context.Context, cb *tgbotapi.CallbackQuery, arg string) error {
	codeID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil
	}
	if _, ok := b.registeredUser(ctx, cb.From, cb.Message.Chat.ID); !ok {
		return nil
	}
	set, err := b.svc.Settlements.Request(ctx, cb.From.ID, codeID)
	if err != nil {
		return b.editText(cb.Message.Chat.ID, cb.Message.MessageID, userMessage(err))
	}
	return b.editText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("✅ Settlement requested for code <code>%d</code>.\nRequest id: <code>%s</code>\nYou will be notified once it is processed.", set.CodeID, escape(set.ID)))
}

func (b *Bot) sendMenuFor(userID, chatID int64, text string) error {
	if b.svc.Admin.IsAdmin(userID) {
		return b.sendAdminMenu(chatID, text)
	}
	return b.sendMainMenu(chatID, text)
}
