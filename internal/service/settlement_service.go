package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"time"

	"referral-ledger/internal/model"
)

// CodeView is an owned code with its settlement state.
type CodeView struct {
	model.Code
	Pending bool
}

// SettlementView joins a settlement with the requester's profile.
type SettlementView struct {
	model.Settlement
	User model.User
}

// SettlementService drives reward codes through pending, completed and rejected.
type SettlementService struct {
	ledger   Ledger
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewSettlementService(ledger Ledger, notifier Notifier, log *slog.Logger) *SettlementService {
	return &SettlementService{ledger: ledger, notifier: notifier, log: log, now: time.Now}
}

// Request opens a pending settlement for a code the user owns. Ownership,
// the settled flag and the single-pending rule are checked in the same
// mutation that creates the record.
func (s *SettlementService) Request(ctx context.Context, userID, codeID int64) (model.Settlement, error) {
	var created model.Settlement
	now := s.now()

	doc, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		user := doc.User(userID)
		if user == nil || !user.Registered {
			return ErrNotRegistered
		}
		code := doc.Code(codeID)
		switch {
		case code == nil:
			return ErrCodeNotFound
		case code.UserID != userID:
			return ErrCodeNotOwned
		case code.Settled:
			return ErrCodeSettled
		case doc.PendingSettlementFor(codeID) != nil:
			return ErrSettlementPending
		}

		at := now
		key := model.SettlementKey(userID, codeID, at)
		for doc.Settlements[key] != nil {
			at = at.Add(time.Second)
			key = model.SettlementKey(userID, codeID, at)
		}
		set := &model.Settlement{
			ID:        key,
			UserID:    userID,
			CodeID:    codeID,
			Status:    model.SettlementPending,
			CreatedAt: now,
		}
		doc.Settlements[key] = set
		created = *set
		return nil
	})
	if err != nil {
		return model.Settlement{}, err
	}

	s.log.Info("settlement requested",
		slog.String("settlement_id", created.ID),
		slog.Int64("user_id", userID),
		slog.Int64("code_id", codeID))

	user := doc.User(userID)
	notifyAll(ctx, s.log, s.notifier, doc.Admins, Notification{
		Text: fmt.Sprintf("💰 <b>New settlement request</b>\nUser: %s (<code>%d</code>)\nCode: <code>%d</code>\nCard: <code>%s</code>\nAccount: <code>%s</code>\nBank: %s",
			html.EscapeString(user.DisplayName()), userID, codeID,
			html.EscapeString(user.Profile.Card),
			html.EscapeString(user.Profile.Account),
			html.EscapeString(user.Profile.Bank)),
	})
	return created, nil
}

// UnsettledCodes lists the user's codes that can be put up for settlement.
func (s *SettlementService) UnsettledCodes(userID int64) []model.Code {
	doc := s.ledger.Read()
	var out []model.Code
	for _, v := range ownedCodes(doc, userID) {
		if !v.Settled && !v.Pending {
			out = append(out, v.Code)
		}
	}
	return out
}

// Codes lists every code the user owns, oldest first.
func (s *SettlementService) Codes(userID int64) []CodeView {
	return ownedCodes(s.ledger.Read(), userID)
}

func ownedCodes(doc *model.Document, userID int64) []CodeView {
	user := doc.User(userID)
	if user == nil {
		return nil
	}
	out := make([]CodeView, 0, len(user.Codes))
	for _, id := range user.Codes {
		code := doc.Code(id)
		if code == nil || code.UserID != userID {
			continue
		}
		out = append(out, CodeView{Code: *code, Pending: doc.PendingSettlementFor(id) != nil})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending lists pending settlements, oldest first.
func (s *SettlementService) Pending(actor int64) ([]SettlementView, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return nil, err
	}
	var out []SettlementView
	for _, set := range doc.Settlements {
		if set.Status == model.SettlementPending {
			out = append(out, settlementView(doc, set))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns a pending settlement for an admin to act on.
func (s *SettlementService) Get(actor int64, id string) (SettlementView, error) {
	doc := s.ledger.Read()
	if err := authorize(doc, actor); err != nil {
		return SettlementView{}, err
	}
	set, err := pendingSettlement(doc, id)
	if err != nil {
		return SettlementView{}, err
	}
	return settlementView(doc, set), nil
}

// AttachReceipt records the payment proof on a pending settlement.
func (s *SettlementService) AttachReceipt(ctx context.Context, actor int64, id string, receipt model.Receipt) error {
	if receipt.FileID == "" {
		return invalid("receipt", "missing file")
	}
	if receipt.Kind != model.ReceiptPhoto && receipt.Kind != model.ReceiptDocument {
		return invalid("receipt", "must be a photo or a document")
	}
	now := s.now()
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		set, err := pendingSettlement(doc, id)
		if err != nil {
			return err
		}
		r := receipt
		set.Receipt = &r
		set.ReceiptAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("receipt attached", slog.String("settlement_id", id), slog.Int64("admin_id", actor))
	return nil
}

// Approve completes a pending settlement that carries a receipt and marks
// its code settled.
func (s *SettlementService) Approve(ctx context.Context, actor int64, id string) (model.Settlement, error) {
	var done model.Settlement
	now := s.now()
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		set, err := pendingSettlement(doc, id)
		if err != nil {
			return err
		}
		if set.Receipt == nil {
			return ErrReceiptRequired
		}
		code := doc.Code(set.CodeID)
		if code == nil {
			return ErrCodeNotFound
		}
		set.Status = model.SettlementCompleted
		set.CompletedAt = &now
		set.ProcessedBy = actor
		code.Settled = true
		done = *set.Clone()
		return nil
	})
	if err != nil {
		return model.Settlement{}, err
	}

	s.log.Info("settlement approved", slog.String("settlement_id", id), slog.Int64("admin_id", actor))
	notify(ctx, s.log, s.notifier, done.UserID, Notification{
		Text:       fmt.Sprintf("✅ Your settlement for code <code>%d</code> has been paid.", done.CodeID),
		Attachment: done.Receipt,
	})
	return done, nil
}

// Reject closes a pending settlement. The code stays unsettled and can be
// requested again.
func (s *SettlementService) Reject(ctx context.Context, actor int64, id string) (model.Settlement, error) {
	var done model.Settlement
	now := s.now()
	_, err := s.ledger.Mutate(ctx, func(doc *model.Document) error {
		if err := authorize(doc, actor); err != nil {
			return err
		}
		set, err := pendingSettlement(doc, id)
		if err != nil {
			return err
		}
		set.Status = model.SettlementRejected
		set.RejectedAt = &now
		set.ProcessedBy = actor
		done = *set.Clone()
		return nil
	})
	if err != nil {
		return model.Settlement{}, err
	}

	s.log.Info("settlement rejected", slog.String("settlement_id", id), slog.Int64("admin_id", actor))
	notify(ctx, s.log, s.notifier, done.UserID, Notification{
		Text: fmt.Sprintf("❌ Your settlement request for code <code>%d</code> was rejected. Contact support or request it again.", done.CodeID),
	})
	return done, nil
}

func pendingSettlement(doc *model.Document, id string) (*model.Settlement, error) {
	set := doc.Settlements[id]
	if set == nil {
		return nil, ErrSettlementNotFound
	}
	if set.Status != model.SettlementPending {
		return nil, ErrAlreadyProcessed
	}
	return set, nil
}

func settlementView(doc *model.Document, set *model.Settlement) SettlementView {
	v := SettlementView{Settlement: *set.Clone()}
	if u := doc.User(set.UserID); u != nil {
		v.User = *u
	} else {
		v.User = model.User{UserID: set.UserID}
	}
	return v
}
