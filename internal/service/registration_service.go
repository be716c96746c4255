package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"referral-ledger/internal/model"
)

// RegistrationService writes user profiles once registration completes.
type RegistrationService struct {
	ledger Ledger
	log    *slog.Logger
	now    func() time.Time
}

func NewRegistrationService(ledger Ledger, log *slog.Logger) *RegistrationService {
	return &RegistrationService{ledger: ledger, log: log, now: time.Now}
}

// ValidateProfile normalizes every field and joins all rule violations.
func ValidateProfile(p model.Profile) (model.Profile, error) {
	var (
		out  model.Profile
		errs []error
		err  error
	)
	if out.Phone, err = ValidateField(FieldPhone, p.Phone); err != nil {
		errs = append(errs, err)
	}
	if out.Name, err = ValidateField(FieldName, p.Name); err != nil {
		errs = append(errs, err)
	}
	if out.Card, err = ValidateField(FieldCard, p.Card); err != nil {
		errs = append(errs, err)
	}
	if out.Account, err = ValidateField(FieldAccount, p.Account); err != nil {
		errs = append(errs, err)
	}
	if out.Bank, err = ValidateField(FieldBank, p.Bank); err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

// User returns the stored user, or false when the ledger has never seen it.
func (s *RegistrationService) User(userID int64) (model.User, bool) {
	u := s.ledger.Read().User(userID)
	if u == nil {
		return model.User{}, false
	}
	return *u, true
}

func (s *RegistrationService) IsRegistered(userID int64) bool {
	u, ok := s.User(userID)
	return ok && u.Registered
}

// Register stores a validated profile and marks the user registered.
// Points and codes already credited to the id are kept.
func (s *RegistrationService) Register(ctx context.Context, userID int64, username string, profile model.Profile) (model.User, error) {
	clean, err := ValidateProfile(profile)
	if err != nil {
		return model.User{}, err
	}
	var saved model.User
	now := s.now()
	_, err = s.ledger.Mutate(ctx, func(doc *model.Document) error {
		user := doc.User(userID)
		if user == nil {
			user = &model.User{UserID: userID, Codes: []int64{}}
			doc.Users[model.Key(userID)] = user
		}
		if user.Registered {
			return ErrAlreadyRegistered
		}
		user.Username = username
		user.Profile = clean
		user.Registered = true
		user.RegisteredAt = &now
		saved = *user
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", slog.Int64("user_id", userID))
	return saved, nil
}

// UpdateField changes one profile field of a registered user.
func (s *RegistrationService) UpdateField(ctx context.Context, userID int64, field ProfileField, raw string) (model.User, error) {
	value, err := ValidateField(field, raw)
	if err != nil {
		return model.User{}, err
	}
	var saved model.User
	_, err = s.ledger.Mutate(ctx, func(doc *model.Document) error {
		user := doc.User(userID)
		if user == nil || !user.Registered {
			return ErrNotRegistered
		}
		switch field {
		case FieldPhone:
			user.Profile.Phone = value
		case FieldName:
			user.Profile.Name = value
		case FieldCard:
			user.Profile.Card = value
		case FieldAccount:
			user.Profile.Account = value
		case FieldBank:
			user.Profile.Bank = value
		}
		saved = *user
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("profile updated", slog.Int64("user_id", userID), slog.String("field", string(field)))
	return saved, nil
}
