package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Document is the whole ledger. Every entity lives in one of its collections.
type Document struct {
	Users            map[string]*User          `json:"users"`
	Groups           map[string]*Group         `json:"groups"`
	UniqueMembers    map[string]*UniqueMember  `json:"unique_members"`
	Codes            map[string]*Code          `json:"codes"`
	Settlements      map[string]*Settlement    `json:"settlements"`
	SupportTickets   map[string]*SupportTicket `json:"support_tickets"`
	Admins           []int64                   `json:"admins"`
	PromotionalLinks []string                  `json:"promotional_links"`
	NextCodeID       int64                     `json:"next_code_id"`
	NextTicketID     int64                     `json:"next_ticket_id"`
}

// NewDocument returns an empty ledger with primaryAdmin on the roster.
func NewDocument(primaryAdmin int64) *Document {
	return &Document{
		Users:            map[string]*User{},
		Groups:           map[string]*Group{},
		UniqueMembers:    map[string]*UniqueMember{},
		Codes:            map[string]*Code{},
		Settlements:      map[string]*Settlement{},
		SupportTickets:   map[string]*SupportTicket{},
		Admins:           []int64{primaryAdmin},
		PromotionalLinks: []string{},
		NextCodeID:       1,
		NextTicketID:     1,
	}
}

// Key renders a numeric id the way collections are keyed.
func Key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// SettlementKey builds a settlement id from the requester, the code and the creation time.
func SettlementKey(userID, codeID int64, at time.Time) string {
	return fmt.Sprintf("%d_%d_%d", userID, codeID, at.Unix())
}

func (d *Document) User(id int64) *User {
	return d.Users[Key(id)]
}

func (d *Document) Group(id int64) *Group {
	return d.Groups[Key(id)]
}

func (d *Document) Code(id int64) *Code {
	return d.Codes[Key(id)]
}

func (d *Document) Ticket(id int64) *SupportTicket {
	return d.SupportTickets[Key(id)]
}

func (d *Document) IsAdmin(id int64) bool {
	for _, a := range d.Admins {
		if a == id {
			return true
		}
	}
	return false
}

// PendingSettlementFor returns the pending settlement of a code, if any.
func (d *Document) PendingSettlementFor(codeID int64) *Settlement {
	for _, s := range d.Settlements {
		if s.CodeID == codeID && s.Status == SettlementPending {
			return s
		}
	}
	return nil
}

// Clone returns a deep copy that shares nothing with d.
func (d *Document) Clone() *Document {
	c := &Document{
		Users:            make(map[string]*User, len(d.Users)),
		Groups:           make(map[string]*Group, len(d.Groups)),
		UniqueMembers:    make(map[string]*UniqueMember, len(d.UniqueMembers)),
		Codes:            make(map[string]*Code, len(d.Codes)),
		Settlements:      make(map[string]*Settlement, len(d.Settlements)),
		SupportTickets:   make(map[string]*SupportTicket, len(d.SupportTickets)),
		Admins:           cloneSlice(d.Admins),
		PromotionalLinks: cloneSlice(d.PromotionalLinks),
		NextCodeID:       d.NextCodeID,
		NextTicketID:     d.NextTicketID,
	}
	for k, v := range d.Users {
		c.Users[k] = v.clone()
	}
	for k, v := range d.Groups {
		c.Groups[k] = v.clone()
	}
	for k, v := range d.UniqueMembers {
		m := *v
		c.UniqueMembers[k] = &m
	}
	for k, v := range d.Codes {
		code := *v
		c.Codes[k] = &code
	}
	for k, v := range d.Settlements {
		c.Settlements[k] = v.Clone()
	}
	for k, v := range d.SupportTickets {
		c.SupportTickets[k] = v.clone()
	}
	return c
}

// Normalize fills collections the decoder left nil.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = map[string]*User{}
	}
	if d.Groups == nil {
		d.Groups = map[string]*Group{}
	}
	if d.UniqueMembers == nil {
		d.UniqueMembers = map[string]*UniqueMember{}
	}
	if d.Codes == nil {
		d.Codes = map[string]*Code{}
	}
	if d.Settlements == nil {
		d.Settlements = map[string]*Settlement{}
	}
	if d.SupportTickets == nil {
		d.SupportTickets = map[string]*SupportTicket{}
	}
	if d.PromotionalLinks == nil {
		d.PromotionalLinks = []string{}
	}
}

// Validate checks the structural invariants a decoded document must hold.
func (d *Document) Validate() error {
	var errs []error
	if d.Users == nil || d.Groups == nil || d.UniqueMembers == nil || d.Codes == nil ||
		d.Settlements == nil || d.SupportTickets == nil {
		errs = append(errs, errors.New("missing collection"))
	}
	if d.NextCodeID < 1 || d.NextTicketID < 1 {
		errs = append(errs, errors.New("counter below 1"))
	}
	errs = append(errs, nullEntries("user", d.Users)...)
	errs = append(errs, nullEntries("group", d.Groups)...)
	errs = append(errs, nullEntries("unique member", d.UniqueMembers)...)
	errs = append(errs, nullEntries("code", d.Codes)...)
	errs = append(errs, nullEntries("settlement", d.Settlements)...)
	errs = append(errs, nullEntries("ticket", d.SupportTickets)...)
	for k, c := range d.Codes {
		if c != nil && c.ID >= d.NextCodeID {
			errs = append(errs, fmt.Errorf("code %s not below next_code_id", k))
		}
	}
	pending := make(map[int64]string)
	for k, s := range d.Settlements {
		if s == nil || s.Status != SettlementPending {
			continue
		}
		if other, ok := pending[s.CodeID]; ok {
			errs = append(errs, fmt.Errorf("settlements %s and %s both pending for code %d", other, k, s.CodeID))
		}
		pending[s.CodeID] = k
	}
	return errors.Join(errs...)
}

func nullEntries[T any](kind string, m map[string]*T) []error {
	var errs []error
	for k, v := range m {
		if v == nil {
			errs = append(errs, fmt.Errorf("%s %s is null", kind, k))
		}
	}
	return errs
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
