// Package logging builds the zap loggers used across the module and adapts
// them to the ledger's OperationLogger port.
package logging

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"go.uber.org/zap"
)

// New returns a production logger, or a development logger when verbose is set.
func New(verbose bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return logger, nil
}

// ZapOperationLogger writes ledger operations to a zap logger. Successful
// operations are logged at debug level, failures at warn.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewOperationLogger wraps logger. A nil logger discards everything.
func NewOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger.Named("ledger")}
}

func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.Int64("available", entry.Available.Int64()),
	}
	if entry.ListingID != "" {
		fields = append(fields, zap.String("listing_id", entry.ListingID))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount.Int64()))
	}
	if entry.Reason != "" {
		fields = append(fields, zap.String("reason", entry.Reason))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Debug("ledger operation", fields...)
}
