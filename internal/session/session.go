// Package session tracks which multi-step conversation each user is in.
package session

import (
	"sync"

	"referral-ledger/internal/model"
)

// Flow names a multi-step conversation.
type Flow string

const (
	FlowNone         Flow = ""
	FlowRegistration Flow = "registration"
	FlowEditProfile  Flow = "edit_profile"
	FlowSupport      Flow = "support"
	FlowTicketReply  Flow = "ticket_reply"
	FlowReceipt      Flow = "settlement_receipt"
	FlowBroadcast    Flow = "broadcast"
	FlowAddLink      Flow = "add_link"
	FlowAddAdmin     Flow = "add_admin"
)

// Step is a position inside a flow.
type Step string

const (
	StepPhone   Step = "phone"
	StepName    Step = "name"
	StepCard    Step = "card"
	StepAccount Step = "account"
	StepBank    Step = "bank"
	StepChoose  Step = "choose"
	StepInput   Step = "input"
)

// State is the minimal context a flow needs between messages.
type State struct {
	Flow         Flow
	Step         Step
	Draft        model.Profile
	Field        string
	TicketID     int64
	SettlementID string
}

// Table holds at most one active flow per user.
type Table struct {
	mu     sync.Mutex
	states map[int64]State
}

func NewTable() *Table {
	return &Table{states: make(map[int64]State)}
}

// Begin starts flow at step for a user, replacing any flow in progress.
func (t *Table) Begin(userID int64, flow Flow, step Step) State {
	st := State{Flow: flow, Step: step}
	t.mu.Lock()
	t.states[userID] = st
	t.mu.Unlock()
	return st
}

// Get returns the user's state; Flow is FlowNone when idle.
func (t *Table) Get(userID int64) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[userID]
}

// Update applies fn to an active state. It reports false when the user
// has no flow in progress.
func (t *Table) Update(userID int64, fn func(*State)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[userID]
	if !ok {
		return false
	}
	fn(&st)
	t.states[userID] = st
	return true
}

// End returns the user to the neutral state and reports the flow that ended.
func (t *Table) End(userID int64) Flow {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.states[userID]
	delete(t.states, userID)
	return st.Flow
}
