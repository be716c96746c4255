package model

import "time"

// LedgerRecord is the persisted row holding the encoded document.
type LedgerRecord struct {
	Name      string `gorm:"primaryKey"`
	Revision  int64
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LedgerRecord) TableName() string { return "ledger_documents" }

// QuarantinedLedger keeps a copy of a document that failed to load.
type QuarantinedLedger struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	Revision  int64
	Body      []byte
	Reason    string
	CreatedAt time.Time
}

func (QuarantinedLedger) TableName() string { return "ledger_quarantine" }
