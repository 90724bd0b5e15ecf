package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultSlot is used when no slot is given.
	DefaultSlot = "default"

	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectReservation = "reservation"
	errorSubjectRefund      = "refund"
	errorSubjectTransaction = "transaction"
	errorSubjectAuth        = "auth"
	errorSubjectSchema      = "schema"
	errorCodeClear          = "clear"
	errorCodeDecode         = "decode"
	errorCodeDuplicate      = "duplicate"
	errorCodeEncode         = "encode"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeMigrate        = "migrate"
	errorCodeUpsert         = "upsert"
)

// Store implements ledger.Store and session.AuthStore using GORM. Every row is
// scoped to a slot so several profiles can share one database.
type Store struct {
	db   *gorm.DB
	slot string
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB, slot string) *Store {
	if slot == "" {
		slot = DefaultSlot
	}
	return &Store{db: db, slot: slot}
}

// Migrate creates or updates the tables.
func (store *Store) Migrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

func (store *Store) LoadState(ctx context.Context) (ledger.State, error) {
	db := store.db.WithContext(ctx)
	var account LedgerAccount
	if err := db.Where("slot = ?", store.slot).Take(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.State{}, ledger.ErrStateNotFound
		}
		return ledger.State{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}

	var reservations []Reservation
	if err := db.Where("slot = ?", store.slot).Find(&reservations).Error; err != nil {
		return ledger.State{}, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	var refunds []PendingRefund
	if err := db.Where("slot = ?", store.slot).Find(&refunds).Error; err != nil {
		return ledger.State{}, wrapStoreError(errorSubjectRefund, errorCodeList, err)
	}
	var transactions []LedgerTransaction
	if err := db.Where("slot = ?", store.slot).Order("position ASC").Find(&transactions).Error; err != nil {
		return ledger.State{}, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}

	state := ledger.NewState()
	state.ServerBase = ledger.Credits(account.ServerBase)
	state.LastUpdated = account.LastUpdated
	for _, row := range reservations {
		reservation, err := mapReservation(row)
		if err != nil {
			return ledger.State{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		state.Reservations[reservation.ListingID] = reservation
	}
	for _, row := range refunds {
		refund, err := mapPendingRefund(row)
		if err != nil {
			return ledger.State{}, wrapStoreError(errorSubjectRefund, errorCodeInvalid, err)
		}
		state.PendingRefunds[refund.ListingID] = refund
	}
	for _, row := range transactions {
		transaction, err := mapTransaction(row)
		if err != nil {
			return ledger.State{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		state.Transactions = append(state.Transactions, transaction)
	}
	return state, nil
}

// SaveState replaces the stored ledger for the slot in one transaction.
func (store *Store) SaveState(ctx context.Context, state ledger.State) error {
	return store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account := LedgerAccount{
			Slot:        store.slot,
			ServerBase:  state.ServerBase.Int64(),
			LastUpdated: state.LastUpdated,
			UpdatedAt:   time.Now().UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"server_base", "last_updated", "updated_at"}),
		}).Create(&account).Error
		if err != nil {
			return wrapStoreError(errorSubjectAccount, errorCodeUpsert, err)
		}
		if err := store.deleteRows(tx); err != nil {
			return err
		}

		reservations := make([]Reservation, 0, len(state.Reservations))
		for id, reservation := range state.Reservations {
			reservations = append(reservations, Reservation{
				Slot:       store.slot,
				ListingID:  id.String(),
				Amount:     reservation.Amount.Int64(),
				ServerHeld: reservation.ServerHeld.Int64(),
				Title:      reservation.Title,
				Status:     string(reservation.Status),
				CreatedAt:  reservation.CreatedAt,
				UpdatedAt:  reservation.UpdatedAt,
			})
		}
		if err := insertRows(tx, reservations, errorSubjectReservation); err != nil {
			return err
		}

		refunds := make([]PendingRefund, 0, len(state.PendingRefunds))
		for id, refund := range state.PendingRefunds {
			refunds = append(refunds, PendingRefund{
				Slot:      store.slot,
				ListingID: id.String(),
				Amount:    refund.Amount.Int64(),
				Title:     refund.Title,
				CreatedAt: refund.CreatedAt,
				UpdatedAt: refund.UpdatedAt,
			})
		}
		if err := insertRows(tx, refunds, errorSubjectRefund); err != nil {
			return err
		}

		transactions := make([]LedgerTransaction, 0, len(state.Transactions))
		for position, transaction := range state.Transactions {
			transactions = append(transactions, LedgerTransaction{
				Slot:          store.slot,
				TransactionID: transaction.ID,
				Position:      position,
				Type:          string(transaction.Type),
				Amount:        transaction.Amount.Int64(),
				ListingID:     transaction.ListingID,
				ListingTitle:  transaction.ListingTitle,
				Description:   transaction.Description,
				BalanceAfter:  transaction.BalanceAfter.Int64(),
				Timestamp:     transaction.Timestamp,
			})
		}
		return insertRows(tx, transactions, errorSubjectTransaction)
	})
}

func (store *Store) ClearState(ctx context.Context) error {
	return store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := store.deleteRows(tx); err != nil {
			return err
		}
		if err := tx.Where("slot = ?", store.slot).Delete(&LedgerAccount{}).Error; err != nil {
			return wrapStoreError(errorSubjectAccount, errorCodeClear, err)
		}
		return nil
	})
}

func (store *Store) LoadAuth(ctx context.Context) (auctionapi.Auth, error) {
	var profile AuthProfile
	if err := store.db.WithContext(ctx).Where("slot = ?", store.slot).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auctionapi.Auth{}, session.ErrAuthNotFound
		}
		return auctionapi.Auth{}, wrapStoreError(errorSubjectAuth, errorCodeGet, err)
	}
	var auth auctionapi.Auth
	if err := json.Unmarshal(profile.Payload, &auth); err != nil {
		return auctionapi.Auth{}, wrapStoreError(errorSubjectAuth, errorCodeDecode, err)
	}
	return auth, nil
}

func (store *Store) SaveAuth(ctx context.Context, auth auctionapi.Auth) error {
	payload, err := json.Marshal(auth)
	if err != nil {
		return wrapStoreError(errorSubjectAuth, errorCodeEncode, err)
	}
	profile := AuthProfile{
		Slot:      store.slot,
		Name:      auth.Name,
		Payload:   datatypes.JSON(payload),
		UpdatedAt: time.Now().UTC(),
	}
	err = store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "payload", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return wrapStoreError(errorSubjectAuth, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) ClearAuth(ctx context.Context) error {
	if err := store.db.WithContext(ctx).Where("slot = ?", store.slot).Delete(&AuthProfile{}).Error; err != nil {
		return wrapStoreError(errorSubjectAuth, errorCodeClear, err)
	}
	return nil
}

func (store *Store) deleteRows(tx *gorm.DB) error {
	if err := tx.Where("slot = ?", store.slot).Delete(&Reservation{}).Error; err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeClear, err)
	}
	if err := tx.Where("slot = ?", store.slot).Delete(&PendingRefund{}).Error; err != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeClear, err)
	}
	if err := tx.Where("slot = ?", store.slot).Delete(&LedgerTransaction{}).Error; err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeClear, err)
	}
	return nil
}

func insertRows[T any](tx *gorm.DB, rows []T, subject string) error {
	if len(rows) == 0 {
		return nil
	}
	err := tx.Create(&rows).Error
	if isUniqueViolation(err) {
		return wrapStoreError(subject, errorCodeDuplicate, err)
	}
	if err != nil {
		return wrapStoreError(subject, errorCodeInsert, err)
	}
	return nil
}

func mapReservation(row Reservation) (ledger.Reservation, error) {
	id, err := ledger.NewListingID(row.ListingID)
	if err != nil {
		return ledger.Reservation{}, err
	}
	status, err := ledger.ParseReservationStatus(row.Status)
	if err != nil {
		return ledger.Reservation{}, err
	}
	return ledger.Reservation{
		ListingID:  id,
		Amount:     ledger.Credits(row.Amount),
		ServerHeld: ledger.Credits(row.ServerHeld),
		Title:      row.Title,
		Status:     status,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func mapPendingRefund(row PendingRefund) (ledger.PendingRefund, error) {
	id, err := ledger.NewListingID(row.ListingID)
	if err != nil {
		return ledger.PendingRefund{}, err
	}
	return ledger.PendingRefund{
		ListingID: id,
		Amount:    ledger.Credits(row.Amount),
		Title:     row.Title,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func mapTransaction(row LedgerTransaction) (ledger.Transaction, error) {
	transactionType, err := ledger.ParseTransactionType(row.Type)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		ID:           row.TransactionID,
		Type:         transactionType,
		Amount:       ledger.Credits(row.Amount),
		ListingID:    row.ListingID,
		ListingTitle: row.ListingTitle,
		Description:  row.Description,
		BalanceAfter: ledger.Credits(row.BalanceAfter),
		Timestamp:    row.Timestamp,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
