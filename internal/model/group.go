package model

import "time"

// Group is a chat where the bot holds administrative rights.
type Group struct {
	GroupID int64   `json:"group_id"`
	Title   string  `json:"title"`
	Members []int64 `json:"members"`
}

func (g *Group) clone() *Group {
	c := *g
	c.Members = cloneSlice(g.Members)
	return &c
}

// HasMember reports whether id is in the local member set.
func (g *Group) HasMember(id int64) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// UniqueMember records the first time a person was ever added to a tracked group.
// It is never modified after creation.
type UniqueMember struct {
	MemberID        int64     `json:"member_id"`
	AddedBy         int64     `json:"first_added_by"`
	AddedAt         time.Time `json:"first_added_date"`
	GroupID         int64     `json:"first_group_id"`
	GroupTitle      string    `json:"first_group_title"`
	AddedByUsername string    `json:"added_by_username,omitempty"`
	MemberUsername  string    `json:"new_member_username,omitempty"`
}
