package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"referral-ledger/internal/model"
)

const minLinkLength = len("https://t.me/a")

// Stats is a snapshot of ledger totals for the admin panel.
type Stats struct {
	Users              int
	RegisteredUsers    int
	UniqueMembers      int
	Groups             int
	Codes              int
	SettledCodes       int
	PendingSettlements int
	OpenTickets        int
	PromotionalLinks   int
}

// AdminService manages the admin roster and promotional links.
type AdminService struct {
	ledger  Ledger
	log     *slog.Logger
	primary int64
}

func NewAdminService(ledger Ledger, log *slog.Logger, primaryAdmin int64) *AdminService {
	return &AdminService{ledger: ledger, log: log, primary: primaryAdmin}
}

// authorize fails with ErrNotAdmin unless actor is on the roster of doc.
func authorize(doc *model.Document, actor int64) error {
	if !doc.IsAdmin(actor) {
		return ErrNotAdmin
	}
	return nil
}

func (s *AdminService) IsAdmin(userID int64) bool {
	return s.ledger.Read().IsAdmin(userID)
}

func (s *AdminService) IsPrimary(userID int64) bool {
	return userID == s.primary
}

// Authorize checks the roster outside of any mutation, for read-only views.
func (s *AdminService) Authorize(actor int64) error {
	return authorize(s.ledger.Read(), actor)
}

// ParseAdminID validates a user id typed by an admin.
func ParseAdminID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, invalid("admin id", "must be a number")
	}
	if id <= 0 {
		return 0, invalid("admin id", "must be positive")
	}
	return id, nil
}

func (s *AdminService) Admins(actor int64) ([]int64, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return nil, err
	}
	return doc.Admins, nil
}

// AddAdmin lets any admin put another user on the roster.
func (s *AdminService) AddAdmin(ctx context.Context, actor, target int64) error {
	if target <= 0 {
		return invalid("admin id", "must be positive")
	}
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		if doc.IsAdmin(target) {
			return ErrAdminExists
		}
		doc.Admins = append(doc.Admins, target)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("admin added", slog.Int64("by", actor), slog.Int64("admin_id", target))
	return nil
}

// RemoveAdmin is reserved to the primary admin, who can never be removed.
func (s *AdminService) RemoveAdmin(ctx context.Context, actor, target int64) error {
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		if actor != s.primary {
			return ErrNotPrimaryAdmin
		}
		if target == s.primary {
			return ErrPrimaryAdminImmutable
		}
		idx := -1
		for i, id := range doc.Admins {
			if id == target {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrAdminNotFound
		}
		doc.Admins = append(doc.Admins[:idx], doc.Admins[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("admin removed", slog.Int64("by", actor), slog.Int64("admin_id", target))
	return nil
}

// NormalizeLink turns @name, t.me/name and bare names into https://t.me/name.
func NormalizeLink(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(v, "https://"), strings.HasPrefix(v, "http://"):
	case strings.HasPrefix(v, "@"):
		v = "https://t.me/" + strings.TrimPrefix(v, "@")
	case strings.HasPrefix(strings.ToLower(v), "t.me/"):
		v = "https://" + v
	default:
		v = "https://t.me/" + v
	}
	if len(v) < minLinkLength || strings.ContainsAny(v, " \t\n") {
		return "", invalid("link", "too short or contains spaces")
	}
	return v, nil
}

func (s *AdminService) Links() []string {
	return s.ledger.Read().PromotionalLinks
}

func (s *AdminService) AddLink(ctx context.Context, actor int64, raw string) (string, error) {
	link, err := NormalizeLink(raw)
	if err != nil {
		return "", err
	}
	_, err = s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		for _, l := range doc.PromotionalLinks {
			if l == link {
				return ErrLinkExists
			}
		}
		doc.PromotionalLinks = append(doc.PromotionalLinks, link)
		return nil
	})
	if err != nil {
		return "", err
	}
	return link, nil
}

// LinkKey is a short stable identifier of a link, small enough for inline
// button data.
func LinkKey(link string) string {
	h := fnv.New32a()
	h.Write([]byte(link))
	return fmt.Sprintf("%08x", h.Sum32())
}

// RemoveLink deletes the link whose LinkKey is key. A key that no longer
// matches any link fails with ErrLinkNotFound.
func (s *AdminService) RemoveLink(ctx context.Context, actor int64, key string) (string, error) {
	var removed string
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		for i, l := range doc.PromotionalLinks {
			if LinkKey(l) == key {
				removed = l
				doc.PromotionalLinks = append(doc.PromotionalLinks[:i], doc.PromotionalLinks[i+1:]...)
				return nil
			}
		}
		return ErrLinkNotFound
	})
	if err != nil {
		return "", err
	}
	s.log.Info("link removed", slog.Int64("by", actor), slog.String("link", removed))
	return removed, nil
}

func (s *AdminService) Stats(actor int64) (Stats, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return Stats{}, err
	}
	st := Stats{
		Users:            len(doc.Users),
		UniqueMembers:    len(doc.UniqueMembers),
		Groups:           len(doc.Groups),
		Codes:            len(doc.Codes),
		PromotionalLinks: len(doc.PromotionalLinks),
	}
	for _, u := range doc.Users {
		if u.Registered {
			st.RegisteredUsers++
		}
	}
	for _, c := range doc.Codes {
		if c.Settled {
			st.SettledCodes++
		}
	}
	for _, set := range doc.Settlements {
		if set.Status == model.SettlementPending {
			st.PendingSettlements++
		}
	}
	for _, t := range doc.SupportTickets {
		if t.Status == model.TicketOpen {
			st.OpenTickets++
		}
	}
	return st, nil
}

// BroadcastTargets lists the tracked groups an admin may broadcast to,
// ordered by group id.
func (s *AdminService) BroadcastTargets(actor int64) ([]model.Group, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return nil, err
	}
	out := make([]model.Group, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}
