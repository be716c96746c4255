package model

import "time"

// Code is a reward unit issued for every hundred points.
type Code struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	IssuedAt time.Time `json:"date"`
	Settled  bool      `json:"settled"`
}
