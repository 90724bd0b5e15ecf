package ledger

const (
	operationLoad      = "load"
	operationSync      = "sync"
	operationReserve   = "reserve"
	operationRelease   = "release"
	operationWin       = "win"
	operationReconcile = "reconcile"
	operationReset     = "reset"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// DefaultTransactionLimit caps the stored credit history.
	DefaultTransactionLimit = 50

	ReasonSignedOut   = "signed out"
	ReasonNoActiveBid = "no active bids"
	ReasonOutbid      = "outbid"
	ReasonAuctionEnd  = "auction ended"

	defaultSyncDescription = "Balance synced with server"

	errorOperationLedger = "ledger"
	errorSubjectState    = "state"
	errorCodePersist     = "persist"
	errorCodeClear       = "clear"
)
