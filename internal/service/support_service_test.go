package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"referral-ledger/internal/model"
)

func newSupport(t *testing.T) (*SupportService, Ledger, *recordingNotifier) {
	t.Helper()
	ledger := newTestLedger(t)
	notifier := &recordingNotifier{}
	svc := NewSupportService(ledger, notifier, testLogger())
	svc.now = fixedClock(testNow)
	return svc, ledger, notifier
}

func TestSupportTicketLifecycle(t *testing.T) {
	svc, ledger, notifier := newSupport(t)
	ctx := context.Background()
	seedUser(t, ledger, member, true, 0)

	ticket, err := svc.Open(ctx, member, "  where is <my> payout?  ")
	require.NoError(t, err)
	require.Equal(t, int64(1), ticket.ID)
	require.Equal(t, model.TicketOpen, ticket.Status)
	require.Equal(t, "where is <my> payout?", ticket.Message)

	adminNotes := notifier.to(primaryAdmin)
	require.Len(t, adminNotes, 1)
	require.Contains(t, adminNotes[0].Text, "where is &lt;my&gt; payout?")

	open, err := svc.OpenTickets(primaryAdmin)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, member, open[0].User.UserID)

	closed, err := svc.Reply(ctx, primaryAdmin, ticket.ID, "sent yesterday")
	require.NoError(t, err)
	require.Equal(t, model.TicketClosed, closed.Status)
	require.Equal(t, "sent yesterday", closed.Response)
	require.Equal(t, primaryAdmin, closed.RespondedBy)
	require.NotNil(t, closed.RespondedAt)

	userNotes := notifier.to(member)
	require.Len(t, userNotes, 1)
	require.Contains(t, userNotes[0].Text, "sent yesterday")

	_, err = svc.Reply(ctx, primaryAdmin, ticket.ID, "again")
	require.ErrorIs(t, err, ErrTicketClosed)
	_, err = svc.Get(primaryAdmin, ticket.ID)
	require.ErrorIs(t, err, ErrTicketClosed)

	open, err = svc.OpenTickets(primaryAdmin)
	require.NoError(t, err)
	require.Empty(t, open)
	require.Equal(t, int64(2), ledger.Read().NextTicketID)
}

func TestSupportOpenErrors(t *testing.T) {
	svc, ledger, notifier := newSupport(t)
	ctx := context.Background()
	seedUser(t, ledger, 43, false, 0)

	_, err := svc.Open(ctx, member, "hello")
	require.ErrorIs(t, err, ErrNotRegistered)
	_, err = svc.Open(ctx, 43, "hello")
	require.ErrorIs(t, err, ErrNotRegistered)
	seedUser(t, ledger, member, true, 0)
	_, err = svc.Open(ctx, member, " \n ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	require.Empty(t, ledger.Read().SupportTickets)
	require.Empty(t, notifier.to(primaryAdmin))
}

func TestSupportReplyErrors(t *testing.T) {
	svc, ledger, _ := newSupport(t)
	ctx := context.Background()
	seedUser(t, ledger, member, true, 0)
	ticket, err := svc.Open(ctx, member, "hello")
	require.NoError(t, err)

	_, err = svc.Reply(ctx, member, ticket.ID, "self answer")
	require.ErrorIs(t, err, ErrNotAdmin)
	_, err = svc.Reply(ctx, primaryAdmin, ticket.ID, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	_, err = svc.Reply(ctx, primaryAdmin, 404, "hi")
	require.ErrorIs(t, err, ErrTicketNotFound)
	_, err = svc.OpenTickets(member)
	require.ErrorIs(t, err, ErrNotAdmin)

	require.Equal(t, model.TicketOpen, ledger.Read().Ticket(ticket.ID).Status)
}

func TestSupportOpenTicketsNewestFirst(t *testing.T) {
	svc, ledger, _ := newSupport(t)
	ctx := context.Background()
	seedUser(t, ledger, member, true, 0)
	for i := 0; i < 3; i++ {
		_, err := svc.Open(ctx, member, "question")
		require.NoError(t, err)
	}
	open, err := svc.OpenTickets(primaryAdmin)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2, 1}, []int64{open[0].ID, open[1].ID, open[2].ID})
}

func TestPreviewTruncatesRunes(t *testing.T) {
	require.Equal(t, "short", preview("short", 10))
	long := strings.Repeat("ب", 12)
	require.Equal(t, strings.Repeat("ب", 10)+"…", preview(long, 10))
}
