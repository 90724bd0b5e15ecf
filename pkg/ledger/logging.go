package ledger

import (
	"context"

	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a ledger operation.
type OperationLog struct {
	Operation string
	ListingID string
	Amount    Credits
	Available Credits
	Reason    string
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithPublisher wires the bus that receives CreditsUpdated after every mutation.
func WithPublisher(publisher events.Publisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithTransactionLimit overrides DefaultTransactionLimit.
func WithTransactionLimit(limit int) ServiceOption {
	return func(service *Service) {
		if limit > 0 {
			service.transactionLimit = limit
		}
	}
}

// WithIDGenerator overrides the transaction id source.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newID = generate
		}
	}
}
