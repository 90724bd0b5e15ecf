package pages

import (
	"context"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"go.uber.org/zap"
)

const (
	MessageSignInForCredits = "Sign in to see your credits."
	messageCreditsStale     = "We couldn't refresh your credits. Showing the last known balance."
)

// CreditsView is the balance panel with the credit history.
type CreditsView struct {
	Status       Status               `json:"status"`
	Available    int64                `json:"available"`
	ServerBase   int64                `json:"serverBase"`
	Badge        chrome.CreditBadge   `json:"badge"`
	Reservations []ReservationLine    `json:"reservations"`
	Transactions []ledger.Transaction `json:"transactions"`
	Synced       bool                 `json:"synced"`
}

// Credits refreshes a stale server balance and reports the ledger.
func (controller *Controller) Credits(ctx context.Context) CreditsView {
	if !controller.session.SignedIn() {
		return CreditsView{Status: warning(MessageSignInForCredits), Badge: chrome.NewCreditBadge(nil)}
	}
	view := CreditsView{}
	synced, err := controller.session.SyncCredits(ctx, false)
	if err != nil {
		controller.logger.Warn("unable to refresh credits", zap.Error(err))
		view.Status = failure(auctionapi.UserMessage(err, messageCreditsStale))
	}
	credits := controller.session.Credits()
	available := credits.AvailableCredits().Int64()
	view.Synced = synced
	view.Available = available
	view.ServerBase = credits.Snapshot().ServerBase.Int64()
	view.Badge = chrome.NewCreditBadge(&available)
	view.Reservations = controller.reservationLines()
	view.Transactions = credits.Transactions()
	return view
}
