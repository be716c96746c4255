package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"referral-ledger/internal/model"
	"referral-ledger/internal/repository"
)

const primaryAdmin int64 = 1

var testNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestLedger(t *testing.T) *repository.LedgerStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	ledger, err := repository.NewLedgerStore(context.Background(), db, testLogger(), repository.LedgerOptions{
		PrimaryAdmin: primaryAdmin,
	})
	require.NoError(t, err)
	return ledger
}

// seedUser stores a user directly, bypassing registration.
func seedUser(t *testing.T, ledger Ledger, id int64, registered bool, points int64) {
	t.Helper()
	_, err := ledger.Mutate(context.Background(), func(doc *model.Document) error {
		doc.Users[model.Key(id)] = &model.User{
			UserID:     id,
			Profile:    model.Profile{Name: fmt.Sprintf("user%d", id), Card: "6037991234567890"},
			Registered: registered,
			Points:     points,
			Codes:      []int64{},
		}
		return nil
	})
	require.NoError(t, err)
}

// seedCode issues a code to a user directly and returns its id.
func seedCode(t *testing.T, ledger Ledger, userID int64) int64 {
	t.Helper()
	var id int64
	_, err := ledger.Mutate(context.Background(), func(doc *model.Document) error {
		id = doc.NextCodeID
		doc.NextCodeID++
		doc.Codes[model.Key(id)] = &model.Code{ID: id, UserID: userID, IssuedAt: testNow}
		u := doc.User(userID)
		u.Codes = append(u.Codes, id)
		return nil
	})
	require.NoError(t, err)
	return id
}

func seedAdmin(t *testing.T, ledger Ledger, id int64) {
	t.Helper()
	_, err := ledger.Mutate(context.Background(), func(doc *model.Document) error {
		doc.Admins = append(doc.Admins, id)
		return nil
	})
	require.NoError(t, err)
}

type sentNotification struct {
	to int64
	n  Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, recipientID int64, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentNotification{to: recipientID, n: n})
	return nil
}

func (r *recordingNotifier) to(id int64) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, s := range r.sent {
		if s.to == id {
			out = append(out, s.n)
		}
	}
	return out
}
