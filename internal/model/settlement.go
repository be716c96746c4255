package model

import "time"

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
	SettlementRejected  SettlementStatus = "rejected"
)

type ReceiptKind string

const (
	ReceiptPhoto    ReceiptKind = "photo"
	ReceiptDocument ReceiptKind = "document"
)

// Receipt references a payment proof uploaded to Telegram.
type Receipt struct {
	Kind         ReceiptKind `json:"type"`
	FileID       string      `json:"file_id"`
	FileUniqueID string      `json:"file_unique_id,omitempty"`
	MimeType     string      `json:"mime_type,omitempty"`
	FileName     string      `json:"file_name,omitempty"`
}

// Settlement tracks the payout of a single code.
type Settlement struct {
	ID          string           `json:"id"`
	UserID      int64            `json:"user_id"`
	CodeID      int64            `json:"code_id"`
	Status      SettlementStatus `json:"status"`
	CreatedAt   time.Time        `json:"date"`
	Receipt     *Receipt         `json:"receipt_info,omitempty"`
	ReceiptAt   *time.Time       `json:"receipt_submission_date,omitempty"`
	CompletedAt *time.Time       `json:"completed_date,omitempty"`
	RejectedAt  *time.Time       `json:"rejected_date,omitempty"`
	ProcessedBy int64            `json:"processed_by,omitempty"`
}

// Clone returns a copy that shares no pointers with s.
func (s *Settlement) Clone() *Settlement {
	c := *s
	if s.Receipt != nil {
		r := *s.Receipt
		c.Receipt = &r
	}
	c.ReceiptAt = cloneTime(s.ReceiptAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.RejectedAt = cloneTime(s.RejectedAt)
	return &c
}
