package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LedgerAccount holds the scalar part of a ledger, one row per slot.
type LedgerAccount struct {
	Slot        string    `gorm:"primaryKey"`
	ServerBase  int64     `gorm:"not null"`
	LastUpdated time.Time
	UpdatedAt   time.Time `gorm:"not null"`
}

func (LedgerAccount) TableName() string { return "ledger_accounts" }

// Reservation mirrors the ledger_reservations table.
type Reservation struct {
	Slot       string    `gorm:"primaryKey"`
	ListingID  string    `gorm:"primaryKey"`
	Amount     int64     `gorm:"not null"`
	ServerHeld int64     `gorm:"not null"`
	Title      string    `gorm:"not null;default:''"`
	Status     string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Reservation) TableName() string { return "ledger_reservations" }

// PendingRefund mirrors the ledger_pending_refunds table.
type PendingRefund struct {
	Slot      string    `gorm:"primaryKey"`
	ListingID string    `gorm:"primaryKey"`
	Amount    int64     `gorm:"not null"`
	Title     string    `gorm:"not null;default:''"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (PendingRefund) TableName() string { return "ledger_pending_refunds" }

// LedgerTransaction mirrors the ledger_transactions table. Position keeps the
// most-recent-first order of the history.
type LedgerTransaction struct {
	EntryID       string    `gorm:"type:uuid;primaryKey"`
	Slot          string    `gorm:"not null;index:idx_ledger_transactions_slot_txn,unique,priority:1;index:idx_ledger_transactions_slot_position,priority:1"`
	TransactionID string    `gorm:"not null;index:idx_ledger_transactions_slot_txn,unique,priority:2"`
	Position      int       `gorm:"not null;index:idx_ledger_transactions_slot_position,priority:2"`
	Type          string    `gorm:"not null"`
	Amount        int64     `gorm:"not null"`
	ListingID     string    `gorm:"not null;default:''"`
	ListingTitle  string    `gorm:"not null;default:''"`
	Description   string    `gorm:"not null;default:''"`
	BalanceAfter  int64     `gorm:"not null"`
	Timestamp     time.Time `gorm:"not null"`
}

func (LedgerTransaction) TableName() string { return "ledger_transactions" }

func (entry *LedgerTransaction) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// AuthProfile stores the signed-in profile as a JSON document.
type AuthProfile struct {
	Slot      string         `gorm:"primaryKey"`
	Name      string         `gorm:"not null;default:''"`
	Payload   datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (AuthProfile) TableName() string { return "auth_profiles" }

// Models lists every table the store uses, in migration order.
func Models() []any {
	return []any{&LedgerAccount{}, &Reservation{}, &PendingRefund{}, &LedgerTransaction{}, &AuthProfile{}}
}
