package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-ledger/internal/service"
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelPoints),
			tgbotapi.NewKeyboardButton(menuLabelCodes),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelSettle),
			tgbotapi.NewKeyboardButton(menuLabelSupport),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelEdit),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStats),
			tgbotapi.NewKeyboardButton(menuLabelSettlements),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTickets),
			tgbotapi.NewKeyboardButton(menuLabelLinks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelBroadcast),
			tgbotapi.NewKeyboardButton(menuLabelAdmins),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelUserMenu),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func linksKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelListLinks),
			tgbotapi.NewKeyboardButton(menuLabelAddLink),
			tgbotapi.NewKeyboardButton(menuLabelRemoveLink),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelBackAdmin),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func adminsKeyboard(primary bool) tgbotapi.ReplyKeyboardMarkup {
	row := tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(menuLabelListAdmins),
		tgbotapi.NewKeyboardButton(menuLabelAddAdmin),
	)
	if primary {
		row = append(row, tgbotapi.NewKeyboardButton(menuLabelRemoveAdmin))
	}
	kb := tgbotapi.NewReplyKeyboard(row, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuLabelBackAdmin)))
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(btnShareContact)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func button(text string, cb callback) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, cb.data())
}

func channelKeyboard(link string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Join the channel", link)),
		tgbotapi.NewInlineKeyboardRow(button("✅ I joined", callback{action: actCheckMembership})),
	)
}

func manualPhoneKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("⌨️ Type the number instead", callback{action: actManualPhone})),
	)
}

func editProfileKeyboard() tgbotapi.InlineKeyboardMarkup {
	field := func(label string, f service.ProfileField) tgbotapi.InlineKeyboardButton {
		return button(label, callback{action: actEditField, arg: string(f)})
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(field("📱 Phone", service.FieldPhone), field("👤 Name", service.FieldName)),
		tgbotapi.NewInlineKeyboardRow(field("💳 Card", service.FieldCard), field("🏦 Account", service.FieldAccount)),
		tgbotapi.NewInlineKeyboardRow(field("🏛 Bank", service.FieldBank)),
	)
}

func settleCodesKeyboard(codeIDs []int64) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(codeIDs))
	for _, id := range codeIDs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("Settle code %d", id), callback{action: actSettleCode, arg: strconv.FormatInt(id, 10)}),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func settlementKeyboard(id string, hasReceipt bool) tgbotapi.InlineKeyboardMarkup {
	receiptLabel := "🧾 Attach receipt"
	if hasReceipt {
		receiptLabel = "🧾 Replace receipt"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(receiptLabel, callback{action: actReceipt, arg: id})),
		tgbotapi.NewInlineKeyboardRow(
			button("✅ Approve", callback{action: actApprove, arg: id}),
			button("❌ Reject", callback{action: actReject, arg: id}),
		),
	)
}

func ticketKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("✍️ Reply", callback{action: actReplyTicket, arg: strconv.FormatInt(id, 10)})),
	)
}

func removeLinksKeyboard(links []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(links)+1)
	for _, l := range links {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("Remove: "+shortText(l, 40), callback{action: actRemoveLink, arg: service.LinkKey(l)}),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("Close", callback{action: actDismiss})))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func removeAdminsKeyboard(admins []int64, primary int64) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(admins)+1)
	for _, id := range admins {
		if id == primary {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("Remove %d", id), callback{action: actRemoveAdmin, arg: strconv.FormatInt(id, 10)}),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("Close", callback{action: actDismiss})))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
