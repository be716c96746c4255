package model

import (
	"strconv"
	"time"
)

// Profile holds the payout details a user submits at registration.
type Profile struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Card    string `json:"card,omitempty"`
	Account string `json:"account,omitempty"`
	Bank    string `json:"bank,omitempty"`
}

// User is a Telegram user known to the ledger.
type User struct {
	UserID       int64      `json:"user_id"`
	Username     string     `json:"username,omitempty"`
	Profile      Profile    `json:"profile"`
	Registered   bool       `json:"registered"`
	Points       int64      `json:"points"`
	Codes        []int64    `json:"codes"`
	RegisteredAt *time.Time `json:"registration_date,omitempty"`
}

func (u *User) clone() *User {
	c := *u
	c.Codes = cloneSlice(u.Codes)
	c.RegisteredAt = cloneTime(u.RegisteredAt)
	return &c
}

// DisplayName falls back to the numeric id when no name was registered.
func (u *User) DisplayName() string {
	if u == nil {
		return "unknown"
	}
	if u.Profile.Name == "" {
		return strconv.FormatInt(u.UserID, 10)
	}
	return u.Profile.Name
}
