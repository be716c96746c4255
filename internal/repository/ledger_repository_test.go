package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"referral-ledger/internal/model"
)

const testAdmin int64 = 1000

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Per-test in-memory database so tests do not share state.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func openStore(t *testing.T, db *gorm.DB, sampleCodes int) *LedgerStore {
	t.Helper()
	s, err := NewLedgerStore(context.Background(), db, testLogger(), LedgerOptions{
		PrimaryAdmin: testAdmin,
		SampleCodes:  sampleCodes,
		DefaultLinks: []string{"https://t.me/rewards"},
	})
	require.NoError(t, err)
	return s
}

func TestLedgerBootstrap(t *testing.T) {
	db := setupDB(t)
	s := openStore(t, db, 3)

	doc := s.Read()
	require.Equal(t, []int64{testAdmin}, doc.Admins)
	require.Equal(t, []string{"https://t.me/rewards"}, doc.PromotionalLinks)
	require.Equal(t, int64(4), doc.NextCodeID)
	require.Equal(t, int64(1), doc.NextTicketID)
	require.Equal(t, int64(1), s.Revision())

	admin := doc.User(testAdmin)
	require.NotNil(t, admin)
	require.True(t, admin.Registered)
	require.Equal(t, "Admin User", admin.Profile.Name)
	require.Equal(t, int64(300), admin.Points)
	require.Equal(t, []int64{1, 2, 3}, admin.Codes)
	for _, id := range admin.Codes {
		code := doc.Code(id)
		require.NotNil(t, code)
		require.Equal(t, testAdmin, code.UserID)
		require.False(t, code.Settled)
	}
}

func TestLedgerBootstrapWithoutSamples(t *testing.T) {
	s := openStore(t, setupDB(t), 0)

	doc := s.Read()
	require.Empty(t, doc.Users)
	require.Empty(t, doc.Codes)
	require.Equal(t, int64(1), doc.NextCodeID)
}

func TestLedgerMutatePersists(t *testing.T) {
	db := setupDB(t)
	s := openStore(t, db, 0)

	applied, err := s.Mutate(context.Background(), func(doc *model.Document) error {
		doc.Users[model.Key(7)] = &model.User{UserID: 7, Registered: true, Codes: []int64{}}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, applied.User(7))
	require.Equal(t, int64(2), s.Revision())

	reopened := openStore(t, db, 0)
	require.Equal(t, int64(2), reopened.Revision())
	require.NotNil(t, reopened.Read().User(7))
}

func TestLedgerMutateErrorLeavesNoChange(t *testing.T) {
	db := setupDB(t)
	s := openStore(t, db, 1)
	before := s.Read()
	boom := errors.New("boom")

	_, err := s.Mutate(context.Background(), func(doc *model.Document) error {
		doc.User(testAdmin).Points = 999
		delete(doc.Codes, model.Key(1))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, before, s.Read())
	require.Equal(t, int64(1), s.Revision())

	reopened := openStore(t, db, 1)
	require.Equal(t, int64(1), reopened.Revision())
	require.Equal(t, int64(100), reopened.Read().User(testAdmin).Points)
	require.NotNil(t, reopened.Read().Code(1))
}

func TestLedgerReadReturnsCopy(t *testing.T) {
	s := openStore(t, setupDB(t), 1)

	doc := s.Read()
	doc.User(testAdmin).Points = 0
	doc.User(testAdmin).Codes[0] = 42
	doc.Admins = append(doc.Admins, 5)

	again := s.Read()
	require.Equal(t, int64(100), again.User(testAdmin).Points)
	require.Equal(t, []int64{1}, again.User(testAdmin).Codes)
	require.Equal(t, []int64{testAdmin}, again.Admins)
}

func TestLedgerQuarantinesUndecodableDocument(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&model.LedgerRecord{Name: documentName, Revision: 5, Body: []byte("{not json")}).Error)

	s := openStore(t, db, 10)

	doc := s.Read()
	require.Empty(t, doc.Users, "corrupted document is replaced by a minimal one without samples")
	require.Equal(t, []int64{testAdmin}, doc.Admins)
	require.Equal(t, int64(6), s.Revision())

	var bad []model.QuarantinedLedger
	require.NoError(t, db.Find(&bad).Error)
	require.Len(t, bad, 1)
	require.Equal(t, "{not json", string(bad[0].Body))
	require.Equal(t, int64(5), bad[0].Revision)
	require.Contains(t, bad[0].Reason, "decode")
}

func TestLedgerQuarantinesInvalidDocument(t *testing.T) {
	db := setupDB(t)
	body := `{"users":{},"groups":{},"unique_members":{},"codes":{"3":{"id":3,"user_id":1}},` +
		`"settlements":{},"support_tickets":{},"admins":[1000],"next_code_id":2,"next_ticket_id":1}`
	require.NoError(t, db.Create(&model.LedgerRecord{Name: documentName, Revision: 1, Body: []byte(body)}).Error)

	s := openStore(t, db, 0)
	require.Empty(t, s.Read().Codes)

	var count int64
	require.NoError(t, db.Model(&model.QuarantinedLedger{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestLedgerRestoresPrimaryAdmin(t *testing.T) {
	db := setupDB(t)
	body := `{"users":{},"groups":{},"unique_members":{},"codes":{},"settlements":{},` +
		`"support_tickets":{},"admins":[55],"promotional_links":[],"next_code_id":1,"next_ticket_id":1}`
	require.NoError(t, db.Create(&model.LedgerRecord{Name: documentName, Revision: 3, Body: []byte(body)}).Error)

	s := openStore(t, db, 0)
	require.Equal(t, []int64{testAdmin, 55}, s.Read().Admins)
	require.Equal(t, int64(3), s.Revision())

	var count int64
	require.NoError(t, db.Model(&model.QuarantinedLedger{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestLedgerDetectsForeignWriter(t *testing.T) {
	db := setupDB(t)
	first := openStore(t, db, 0)
	second := openStore(t, db, 0)
	ctx := context.Background()

	_, err := first.Mutate(ctx, func(doc *model.Document) error {
		doc.NextTicketID++
		return nil
	})
	require.NoError(t, err)

	_, err = second.Mutate(ctx, func(doc *model.Document) error {
		doc.NextTicketID += 10
		return nil
	})
	require.ErrorIs(t, err, ErrConcurrentWrite)
	require.Equal(t, int64(2), second.Read().NextTicketID, "conflict reloads the stored document")
	require.Equal(t, int64(2), second.Revision())

	for i := 0; i < 3; i++ {
		_, err = second.Mutate(ctx, func(doc *model.Document) error {
			doc.NextTicketID += 10
			return nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, int64(32), second.Read().NextTicketID)

	reopened := openStore(t, db, 0)
	require.Equal(t, int64(32), reopened.Read().NextTicketID)
	require.Equal(t, int64(5), reopened.Revision())
}

func TestLedgerSerializesMutations(t *testing.T) {
	s := openStore(t, setupDB(t), 0)
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Mutate(ctx, func(doc *model.Document) error {
				doc.NextTicketID++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int64(1+writers), s.Read().NextTicketID)
	require.Equal(t, int64(1+writers), s.Revision())
}
