package service

import (
	"time"

	"referral-ledger/internal/model"
)

// PointsPerCode is the point step at which a reward code is issued.
const PointsPerCode = 100

// issueCode hands user a new code when its point total sits on a positive
// multiple of PointsPerCode. It must run inside the mutation that applied
// the increment.
func issueCode(doc *model.Document, user *model.User, now time.Time) *model.Code {
	if user.Points <= 0 || user.Points%PointsPerCode != 0 {
		return nil
	}
	code := &model.Code{
		ID:       doc.NextCodeID,
		UserID:   user.UserID,
		IssuedAt: now,
	}
	doc.NextCodeID++
	doc.Codes[model.Key(code.ID)] = code
	user.Codes = append(user.Codes, code.ID)
	return code
}
