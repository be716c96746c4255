package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"referral-ledger/internal/model"
)

var validProfile = model.Profile{
	Phone:   "09123456789",
	Name:    "Sara Ahmadi",
	Card:    "6037-9912-3456-7890",
	Account: "IR 123456789012345678901234",
	Bank:    "Melli",
}

func newRegistration(t *testing.T) (*RegistrationService, Ledger) {
	t.Helper()
	ledger := newTestLedger(t)
	svc := NewRegistrationService(ledger, testLogger())
	svc.now = fixedClock(testNow)
	return svc, ledger
}

func TestRegisterNormalizesProfile(t *testing.T) {
	svc, _ := newRegistration(t)

	user, err := svc.Register(context.Background(), member, "sara", validProfile)
	require.NoError(t, err)
	require.True(t, user.Registered)
	require.Equal(t, "sara", user.Username)
	require.Equal(t, model.Profile{
		Phone:   "+989123456789",
		Name:    "Sara Ahmadi",
		Card:    "6037991234567890",
		Account: "123456789012345678901234",
		Bank:    "Melli",
	}, user.Profile)
	require.Equal(t, testNow, *user.RegisteredAt)
	require.True(t, svc.IsRegistered(member))

	_, err = svc.Register(context.Background(), member, "sara", validProfile)
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterKeepsEarlierCredit(t *testing.T) {
	svc, ledger := newRegistration(t)
	seedUser(t, ledger, member, false, 7)

	user, err := svc.Register(context.Background(), member, "", validProfile)
	require.NoError(t, err)
	require.Equal(t, int64(7), user.Points)
}

func TestRegisterInvalidProfileWritesNothing(t *testing.T) {
	svc, ledger := newRegistration(t)
	bad := validProfile
	bad.Card = "1234"
	bad.Bank = "B2"

	_, err := svc.Register(context.Background(), member, "", bad)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, err.Error(), "card")
	require.Contains(t, err.Error(), "bank")

	_, ok := svc.User(member)
	require.False(t, ok)
	require.Empty(t, ledger.Read().Users)
}

func TestUpdateField(t *testing.T) {
	svc, _ := newRegistration(t)
	ctx := context.Background()

	_, err := svc.UpdateField(ctx, member, FieldBank, "Saderat")
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = svc.Register(ctx, member, "", validProfile)
	require.NoError(t, err)

	user, err := svc.UpdateField(ctx, member, FieldBank, " Saderat ")
	require.NoError(t, err)
	require.Equal(t, "Saderat", user.Profile.Bank)

	user, err = svc.UpdateField(ctx, member, FieldPhone, "00447911123456")
	require.NoError(t, err)
	require.Equal(t, "+447911123456", user.Profile.Phone)

	_, err = svc.UpdateField(ctx, member, FieldCard, "abc")
	require.Error(t, err)
	stored, _ := svc.User(member)
	require.Equal(t, "6037991234567890", stored.Profile.Card)
}
