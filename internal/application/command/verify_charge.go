package command

import (
	"context"

	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/infrastructure/external/iap"
)

// Business codes the charge endpoints answer with. Zero means verified;
// clients keep the order pending on anything else.
const (
	ChargeCodeOK             = 0
	ChargeCodeInvalidReceipt = 1
	ChargeCodeStoreError     = 2
)

// VerifyChargeCommand checks a receipt with the platform store and answers
// the client wire contract: {code, msg}.
type VerifyChargeCommand struct {
	checker iap.ReceiptChecker
	logger  *zap.Logger
}

// NewVerifyChargeCommand creates a new verify charge command
func NewVerifyChargeCommand(checker iap.ReceiptChecker, logger *zap.Logger) *VerifyChargeCommand {
	return &VerifyChargeCommand{checker: checker, logger: logger}
}

// Execute executes the verify charge command. Store lookups that fail
// outright come back as a business code too; the client's retry loop only
// understands codes.
func (c *VerifyChargeCommand) Execute(ctx context.Context, req *dto.ChargeRequest) *dto.ChargeResponse {
	result, err := c.checker.Check(ctx, req.Receipt)
	if err != nil {
		c.logger.Warn("store receipt check failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return &dto.ChargeResponse{Code: ChargeCodeStoreError, Msg: "store verification unavailable"}
	}

	if !result.Valid {
		c.logger.Warn("invalid receipt rejected",
			zap.String("user_id", req.UserID),
		)
		return &dto.ChargeResponse{Code: ChargeCodeInvalidReceipt, Msg: "receipt is invalid"}
	}

	c.logger.Info("receipt verified",
		zap.String("user_id", req.UserID),
		zap.String("transaction_id", result.TransactionID),
		zap.String("product_id", result.ProductID),
	)
	return &dto.ChargeResponse{Code: ChargeCodeOK}
}
