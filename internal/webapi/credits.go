package webapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorInvalidListingID   = "invalid_listing_id"
	errorInvalidAmount      = "invalid_amount"
	errorInsufficient       = "insufficient_credits"
	errorUnknownReservation = "unknown_reservation"
	errorReservationWon     = "reservation_won"
	errorLedger             = "ledger_error"
)

type reportCreditsRequest struct {
	Credits *int64 `json:"credits"`
	Reason  string `json:"reason"`
}

type reconcileRequest struct {
	Listings []auctionapi.Listing `json:"listings"`
}

type reserveRequest struct {
	ListingID    string `json:"listingId"`
	Amount       int64  `json:"amount"`
	ListingTitle string `json:"listingTitle"`
}

type settleRequest struct {
	ListingTitle string `json:"listingTitle"`
	Reason       string `json:"reason"`
}

type availableResponse struct {
	Available int64 `json:"available"`
}

func (handler *httpHandler) credits() *ledger.Service {
	return handler.pages.Session().Credits()
}

func (handler *httpHandler) respondAvailable(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, availableResponse{Available: handler.credits().AvailableCredits().Int64()})
}

func (handler *httpHandler) handleTransactions(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"transactions": handler.credits().Transactions()})
}

// handleReportCredits lets another component announce an authoritative
// balance. It goes through the bus so every listener sees it.
func (handler *httpHandler) handleReportCredits(ctx *gin.Context) {
	var request reportCreditsRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if request.Credits == nil || *request.Credits < 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidAmount, "credits must be a non-negative number"))
		return
	}
	handler.pages.Session().Bus().Publish(events.BaseCreditsSynced{Credits: *request.Credits, Reason: request.Reason})
	handler.respondAvailable(ctx)
}

func (handler *httpHandler) handleReconcile(ctx *gin.Context) {
	var request reconcileRequest
	if !bindJSON(ctx, &request) {
		return
	}
	snapshots := make([]ledger.ListingSnapshot, 0, len(request.Listings))
	for _, listing := range request.Listings {
		snapshots = append(snapshots, listing.Snapshot())
	}
	user := handler.pages.Session().UserName()
	if err := handler.credits().ReconcileListings(ctx.Request.Context(), snapshots, user); err != nil {
		handler.respondLedgerError(ctx, "reconcile failed", err)
		return
	}
	handler.respondAvailable(ctx)
}

func (handler *httpHandler) handleReserve(ctx *gin.Context) {
	var request reserveRequest
	if !bindJSON(ctx, &request) {
		return
	}
	result, err := handler.credits().ApplyBidReservation(ctx.Request.Context(), ledger.BidReservation{
		ListingID:    request.ListingID,
		Amount:       request.Amount,
		ListingTitle: request.ListingTitle,
	})
	if err != nil {
		handler.respondLedgerError(ctx, "reservation failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"delta":       result.Delta.Int64(),
		"unchanged":   result.Unchanged,
		"reservation": result.Reservation,
		"available":   handler.credits().AvailableCredits().Int64(),
	})
}

func (handler *httpHandler) handleRelease(ctx *gin.Context) {
	result, err := handler.credits().ReleaseReservation(ctx.Request.Context(), ledger.Release{
		ListingID:    ctx.Param("id"),
		Reason:       ctx.Query("reason"),
		ListingTitle: ctx.Query("title"),
	})
	if err != nil {
		handler.respondLedgerError(ctx, "release failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"amount":    result.Amount.Int64(),
		"immediate": result.Immediate.Int64(),
		"pending":   result.Pending.Int64(),
		"available": handler.credits().AvailableCredits().Int64(),
	})
}

func (handler *httpHandler) handleWin(ctx *gin.Context) {
	var request settleRequest
	if ctx.Request.ContentLength > 0 && !bindJSON(ctx, &request) {
		return
	}
	result, err := handler.credits().MarkReservationAsWon(ctx.Request.Context(), ledger.Win{
		ListingID:    ctx.Param("id"),
		ListingTitle: request.ListingTitle,
		Reason:       request.Reason,
	})
	if err != nil {
		handler.respondLedgerError(ctx, "win failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"unchanged": result.Unchanged,
		"available": handler.credits().AvailableCredits().Int64(),
	})
}

func (handler *httpHandler) respondLedgerError(ctx *gin.Context, message string, err error) {
	status, code := mapLedgerError(err)
	if status >= http.StatusInternalServerError {
		handler.logger.Error(message, zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func mapLedgerError(source error) (int, string) {
	switch {
	case errors.Is(source, ledger.ErrInvalidListingID):
		return http.StatusBadRequest, errorInvalidListingID
	case errors.Is(source, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, errorInvalidAmount
	case errors.Is(source, ledger.ErrInsufficientCredits):
		return http.StatusConflict, errorInsufficient
	case errors.Is(source, ledger.ErrUnknownReservation):
		return http.StatusNotFound, errorUnknownReservation
	case errors.Is(source, ledger.ErrReservationWon):
		return http.StatusConflict, errorReservationWon
	default:
		return http.StatusInternalServerError, errorLedger
	}
}
