package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type command int

const (
	cmdNone command = iota
	cmdStart
	cmdHelp
	cmdCancel
	cmdPoints
	cmdCodes
	cmdSettle
	cmdSupport
	cmdEditProfile
	cmdAdminPanel
	cmdUserMenu
	cmdStats
	cmdSettlements
	cmdTickets
	cmdLinks
	cmdListLinks
	cmdAddLink
	cmdRemoveLink
	cmdBroadcast
	cmdAdmins
	cmdListAdmins
	cmdAddAdmin
	cmdRemoveAdmin
	cmdBackToAdmin
)

const (
	menuLabelPoints      = "⭐ My points"
	menuLabelCodes       = "🎁 My codes"
	menuLabelSettle      = "💰 Request settlement"
	menuLabelSupport     = "📨 Support"
	menuLabelEdit        = "✏️ Edit profile"
	menuLabelHelp        = "ℹ️ Help"
	menuLabelStats       = "📊 Statistics"
	menuLabelSettlements = "💳 Settlements"
	menuLabelTickets     = "📬 Support tickets"
	menuLabelLinks       = "🔗 Promotional links"
	menuLabelListLinks   = "📋 List links"
	menuLabelAddLink     = "➕ Add link"
	menuLabelRemoveLink  = "❌ Remove link"
	menuLabelBroadcast   = "📢 Broadcast"
	menuLabelAdmins      = "👮 Admins"
	menuLabelListAdmins  = "📋 List admins"
	menuLabelAddAdmin    = "➕ Add admin"
	menuLabelRemoveAdmin = "❌ Remove admin"
	menuLabelUserMenu    = "👤 User menu"
	menuLabelBackAdmin   = "🔙 Admin panel"
	btnCancel            = "↩️ Cancel"
	btnShareContact      = "📱 Share phone number"
)

var slashCommands = map[string]command{
	"start":  cmdStart,
	"help":   cmdHelp,
	"cancel": cmdCancel,
	"admin":  cmdAdminPanel,
	"points": cmdPoints,
	"codes":  cmdCodes,
}

var menuLabels = map[string]command{
	menuLabelPoints:      cmdPoints,
	menuLabelCodes:       cmdCodes,
	menuLabelSettle:      cmdSettle,
	menuLabelSupport:     cmdSupport,
	menuLabelEdit:        cmdEditProfile,
	menuLabelHelp:        cmdHelp,
	menuLabelStats:       cmdStats,
	menuLabelSettlements: cmdSettlements,
	menuLabelTickets:     cmdTickets,
	menuLabelLinks:       cmdLinks,
	menuLabelListLinks:   cmdListLinks,
	menuLabelAddLink:     cmdAddLink,
	menuLabelRemoveLink:  cmdRemoveLink,
	menuLabelBroadcast:   cmdBroadcast,
	menuLabelAdmins:      cmdAdmins,
	menuLabelListAdmins:  cmdListAdmins,
	menuLabelAddAdmin:    cmdAddAdmin,
	menuLabelRemoveAdmin: cmdRemoveAdmin,
	menuLabelUserMenu:    cmdUserMenu,
	menuLabelBackAdmin:   cmdBackToAdmin,
	btnCancel:            cmdCancel,
}

// adminOnly commands are refused to users off the roster.
func (c command) adminOnly() bool {
	return c >= cmdStats && c <= cmdBackToAdmin
}

// resolveCommand maps a slash command or a menu label to a command.
func resolveCommand(msg *tgbotapi.Message) command {
	if msg.IsCommand() {
		return slashCommands[strings.ToLower(msg.Command())]
	}
	return menuLabels[strings.TrimSpace(msg.Text)]
}

type action string

const (
	actCheckMembership action = "member"
	actManualPhone     action = "phone"
	actEditField       action = "edit"
	actSettleCode      action = "settle"
	actReceipt         action = "receipt"
	actApprove         action = "approve"
	actReject          action = "reject"
	actReplyTicket     action = "reply"
	actRemoveLink      action = "dellink"
	actRemoveAdmin     action = "deladmin"
	actDismiss         action = "dismiss"
)

var knownActions = map[action]bool{
	actCheckMembership: true,
	actManualPhone:     true,
	actEditField:       true,
	actSettleCode:      true,
	actReceipt:         true,
	actApprove:         true,
	actReject:          true,
	actReplyTicket:     true,
	actRemoveLink:      true,
	actRemoveAdmin:     true,
	actDismiss:         true,
}

// callback is decoded inline button data of the form action:argument.
type callback struct {
	action action
	arg    string
}

func (c callback) data() string {
	if c.arg == "" {
		return string(c.action)
	}
	return string(c.action) + ":" + c.arg
}

func parseCallback(data string) (callback, bool) {
	name, arg, _ := strings.Cut(data, ":")
	a := action(name)
	if !knownActions[a] {
		return callback{}, false
	}
	return callback{action: a, arg: arg}, true
}
