package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"referral-ledger/internal/model"
)

// Member is a person appearing in a group join event.
type Member struct {
	ID       int64
	Username string
}

// JoinEvent is one "members joined" update from a group where the bot is an
// administrator. Members never contains the bot itself.
type JoinEvent struct {
	GroupID         int64
	GroupTitle      string
	InviterID       int64
	InviterUsername string
	Members         []Member
}

// JoinResult summarizes what one event did to the ledger.
type JoinResult struct {
	NewUnique    []int64
	PointsAdded  int64
	Points       int64
	IssuedCodes  []IssuedCode
	InviterKnown bool
}

// IssuedCode is a code together with the point total that earned it.
type IssuedCode struct {
	model.Code
	Points int64
}

// GroupStatus is the bot's own membership status in a group.
type GroupStatus string

const (
	StatusCreator       GroupStatus = "creator"
	StatusAdministrator GroupStatus = "administrator"
	StatusMember        GroupStatus = "member"
	StatusRestricted    GroupStatus = "restricted"
	StatusLeft          GroupStatus = "left"
	StatusKicked        GroupStatus = "kicked"
)

// Privileged reports whether the status carries administrative rights.
func (s GroupStatus) Privileged() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// TitleLookup fetches the current title of a group.
type TitleLookup func(ctx context.Context, groupID int64) (string, error)

// MembershipService attributes new group members to inviters and tracks
// the groups the bot administers.
type MembershipService struct {
	ledger   Ledger
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewMembershipService(ledger Ledger, notifier Notifier, log *slog.Logger) *MembershipService {
	return &MembershipService{ledger: ledger, notifier: notifier, log: log, now: time.Now}
}

// RecordJoin applies a join event in a single ledger mutation. A person who
// already has a unique member record earns nobody a point; the group's
// member set is updated either way.
func (s *MembershipService) RecordJoin(ctx context.Context, ev JoinEvent) (JoinResult, error) {
	var res JoinResult
	now := s.now()

	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		res = JoinResult{}
		group := doc.Group(ev.GroupID)
		if group == nil {
			group = &model.Group{GroupID: ev.GroupID, Title: groupTitle(ev.GroupID, ev.GroupTitle), Members: []int64{}}
			doc.Groups[model.Key(ev.GroupID)] = group
		} else if ev.GroupTitle != "" {
			group.Title = ev.GroupTitle
		}

		inviter := doc.User(ev.InviterID)
		res.InviterKnown = inviter != nil && inviter.Registered

		for _, m := range ev.Members {
			key := model.Key(m.ID)
			if _, seen := doc.UniqueMembers[key]; !seen {
				doc.UniqueMembers[key] = &model.UniqueMember{
					MemberID:        m.ID,
					AddedBy:         ev.InviterID,
					AddedAt:         now,
					GroupID:         ev.GroupID,
					GroupTitle:      group.Title,
					AddedByUsername: ev.InviterUsername,
					MemberUsername:  m.Username,
				}
				res.NewUnique = append(res.NewUnique, m.ID)

				if res.InviterKnown {
					inviter.Points++
					res.PointsAdded++
					if code := issueCode(doc, inviter, now); code != nil {
						res.IssuedCodes = append(res.IssuedCodes, IssuedCode{Code: *code, Points: inviter.Points})
					}
				}
			}
			if !group.HasMember(m.ID) {
				group.Members = append(group.Members, m.ID)
			}
		}
		if inviter != nil {
			res.Points = inviter.Points
		}
		return nil
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("record join: %w", err)
	}

	if res.PointsAdded > 0 {
		s.log.Info("points awarded",
			slog.Int64("user_id", ev.InviterID),
			slog.Int64("group_id", ev.GroupID),
			slog.Int64("added", res.PointsAdded),
			slog.Int64("total", res.Points))
	}
	for _, code := range res.IssuedCodes {
		s.log.Info("code issued", slog.Int64("user_id", ev.InviterID), slog.Int64("code_id", code.ID))
		notify(ctx, s.log, s.notifier, ev.InviterID, Notification{
			Text: fmt.Sprintf("🎉 Congratulations! You reached %d points and earned a new reward code.\nYour code number: <code>%d</code>\nOpen \"My codes\" to request settlement.",
				code.Points, code.ID),
		})
	}
	return res, nil
}

// MemberLeft drops a member from a group's local member set. When the bot
// itself leaves, the group is forgotten. Unique member records are kept.
func (s *MembershipService) MemberLeft(ctx context.Context, groupID, memberID int64, isBot bool) error {
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		group := doc.Group(groupID)
		if group == nil {
			return nil
		}
		if isBot {
			delete(doc.Groups, model.Key(groupID))
			return nil
		}
		kept := group.Members[:0]
		for _, id := range group.Members {
			if id != memberID {
				kept = append(kept, id)
			}
		}
		group.Members = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("member left: %w", err)
	}
	return nil
}

// GroupChange says how a bot status update changed the tracked groups.
type GroupChange int

const (
	GroupUnchanged GroupChange = iota
	GroupTracked
	GroupUntracked
)

// BotStatusChanged tracks a group while the bot holds administrative rights
// and forgets it otherwise.
func (s *MembershipService) BotStatusChanged(ctx context.Context, groupID int64, title string, status GroupStatus) (GroupChange, error) {
	change := GroupUnchanged
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		change = GroupUnchanged
		key := model.Key(groupID)
		group := doc.Groups[key]
		switch {
		case !status.Privileged():
			if group != nil {
				delete(doc.Groups, key)
				change = GroupUntracked
			}
		case group == nil:
			doc.Groups[key] = &model.Group{GroupID: groupID, Title: groupTitle(groupID, title), Members: []int64{}}
			change = GroupTracked
		case title != "":
			group.Title = title
		}
		return nil
	})
	if err != nil {
		return GroupUnchanged, fmt.Errorf("bot status: %w", err)
	}
	s.log.Info("bot status changed",
		slog.Int64("group_id", groupID),
		slog.String("status", string(status)),
		slog.Int("change", int(change)))
	return change, nil
}

// RefreshTitles looks up every tracked group's title and stores the ones
// that changed. Lookups run outside the mutation; a failed lookup leaves
// the group untouched.
func (s *MembershipService) RefreshTitles(ctx context.Context, lookup TitleLookup) (int, error) {
	doc := s.ledger.Read()
	ids := make([]int64, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		ids = append(ids, g.GroupID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	titles := make(map[int64]string)
	for _, id := range ids {
		title, err := lookup(ctx, id)
		if err != nil {
			s.log.Warn("group title lookup failed", slog.Int64("group_id", id), slog.Any("error", err))
			continue
		}
		if title != "" && title != doc.Group(id).Title {
			titles[id] = title
		}
	}
	if len(titles) == 0 {
		return 0, nil
	}

	updated := 0
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		updated = 0
		for id, title := range titles {
			if g := doc.Group(id); g != nil {
				g.Title = title
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("refresh titles: %w", err)
	}
	return updated, nil
}

// Groups returns the tracked groups ordered by id.
func (s *MembershipService) Groups() []model.Group {
	doc := s.ledger.Read()
	out := make([]model.Group, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out
}

func groupTitle(id int64, title string) string {
	if title != "" {
		return title
	}
	return fmt.Sprintf("Group %d", id)
}
