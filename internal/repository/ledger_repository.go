package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"referral-ledger/internal/model"
)

const (
	documentName     = "main"
	pointsPerCode    = 100
	sampleAdminName  = "Admin User"
	quarantineReason = "decode"
)

// ErrConcurrentWrite means the stored revision moved under us, which only
// happens when a second process writes the same database.
var ErrConcurrentWrite = errors.New("ledger modified concurrently")

// LedgerOptions control how an absent or broken document is rebuilt.
type LedgerOptions struct {
	PrimaryAdmin int64
	SampleCodes  int
	DefaultLinks []string
}

// LedgerStore keeps the ledger document in memory and persists every
// mutation to SQLite before it becomes visible to readers.
type LedgerStore struct {
	db   *gorm.DB
	log  *slog.Logger
	opts LedgerOptions
	now  func() time.Time

	writeMu  sync.Mutex
	mu       sync.RWMutex
	doc      *model.Document
	revision int64
}

// NewLedgerStore loads the document, bootstrapping or quarantining as needed.
func NewLedgerStore(ctx context.Context, db *gorm.DB, log *slog.Logger, opts LedgerOptions) (*LedgerStore, error) {
	if opts.PrimaryAdmin <= 0 {
		return nil, fmt.Errorf("primary admin id must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &LedgerStore{db: db, log: log, opts: opts, now: time.Now}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Read returns a private copy of the last committed document.
func (s *LedgerStore) Read() *model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Mutate applies fn to a copy of the document and commits the result.
// Calls are serialized process-wide. If fn fails nothing is written and its
// error is returned as is.
func (s *LedgerStore) Mutate(ctx context.Context, fn func(doc *model.Document) error) (*model.Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := s.doc.Clone()
	rev := s.revision
	s.mu.RUnlock()

	if err := fn(next); err != nil {
		return nil, err
	}

	body, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}

	res := s.db.WithContext(ctx).Model(&model.LedgerRecord{}).
		Where("name = ? AND revision = ?", documentName, rev).
		Updates(map[string]interface{}{
			"revision":   rev + 1,
			"body":       body,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("save ledger: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.reload(ctx); err != nil {
			s.log.Error("reload ledger after conflict", slog.Any("error", err))
		}
		return nil, ErrConcurrentWrite
	}

	s.mu.Lock()
	s.doc = next
	s.revision = rev + 1
	s.mu.Unlock()

	return next.Clone(), nil
}

// Revision reports the revision of the committed document.
func (s *LedgerStore) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// reload replaces the cached document with the stored one after another
// writer moved the revision. The caller holds writeMu.
func (s *LedgerStore) reload(ctx context.Context) error {
	var rec model.LedgerRecord
	if err := s.db.WithContext(ctx).Where("name = ?", documentName).First(&rec).Error; err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	doc, err := decodeDocument(rec.Body, s.opts.PrimaryAdmin)
	if err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}

	s.mu.Lock()
	s.doc = doc
	s.revision = rec.Revision
	s.mu.Unlock()
	s.log.Warn("ledger changed by another writer, reloaded", slog.Int64("revision", rec.Revision))
	return nil
}

func (s *LedgerStore) load(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	var rec model.LedgerRecord
	err := db.Where("name = ?", documentName).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.bootstrap(ctx)
	case err != nil:
		return fmt.Errorf("load ledger: %w", err)
	}

	doc, derr := decodeDocument(rec.Body, s.opts.PrimaryAdmin)
	if derr == nil {
		s.doc = doc
		s.revision = rec.Revision
		return nil
	}
	return s.quarantine(ctx, rec, derr)
}

// bootstrap writes a fresh document with sample codes for the primary admin.
func (s *LedgerStore) bootstrap(ctx context.Context) error {
	doc := s.minimalDocument()
	now := s.now()

	if s.opts.SampleCodes > 0 {
		admin := &model.User{
			UserID:       s.opts.PrimaryAdmin,
			Profile:      model.Profile{Name: sampleAdminName},
			Registered:   true,
			Codes:        []int64{},
			RegisteredAt: &now,
		}
		for i := 0; i < s.opts.SampleCodes; i++ {
			id := doc.NextCodeID
			doc.NextCodeID++
			doc.Codes[model.Key(id)] = &model.Code{ID: id, UserID: admin.UserID, IssuedAt: now}
			admin.Codes = append(admin.Codes, id)
			admin.Points += pointsPerCode
		}
		doc.Users[model.Key(admin.UserID)] = admin
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	rec := model.LedgerRecord{Name: documentName, Revision: 1, Body: body}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	s.doc = doc
	s.revision = rec.Revision
	s.log.Info("ledger initialized",
		slog.Int64("primary_admin", s.opts.PrimaryAdmin),
		slog.Int("sample_codes", s.opts.SampleCodes))
	return nil
}

// quarantine moves an unreadable document aside and replaces it with a minimal one.
func (s *LedgerStore) quarantine(ctx context.Context, rec model.LedgerRecord, cause error) error {
	doc := s.minimalDocument()
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bad := model.QuarantinedLedger{
			Name:     rec.Name,
			Revision: rec.Revision,
			Body:     rec.Body,
			Reason:   fmt.Sprintf("%s: %v", quarantineReason, cause),
		}
		if err := tx.Create(&bad).Error; err != nil {
			return fmt.Errorf("quarantine ledger: %w", err)
		}
		return tx.Model(&model.LedgerRecord{}).
			Where("name = ?", rec.Name).
			Updates(map[string]interface{}{
				"revision":   rec.Revision + 1,
				"body":       body,
				"updated_at": s.now(),
			}).Error
	})
	if err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}

	s.doc = doc
	s.revision = rec.Revision + 1
	s.log.Error("ledger document corrupted, quarantined and reinitialized",
		slog.Int64("revision", rec.Revision),
		slog.Any("error", cause))
	return nil
}

func (s *LedgerStore) minimalDocument() *model.Document {
	doc := model.NewDocument(s.opts.PrimaryAdmin)
	doc.PromotionalLinks = append(doc.PromotionalLinks, s.opts.DefaultLinks...)
	return doc
}

func decodeDocument(body []byte, primaryAdmin int64) (*model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if !doc.IsAdmin(primaryAdmin) {
		doc.Admins = append([]int64{primaryAdmin}, doc.Admins...)
	}
	return &doc, nil
}
