package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bivex/iap-reconciler/internal/application/command"
	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/application/query"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/interfaces/http/response"
)

// ReconcileHandler exposes the purchase reconciliation operations.
type ReconcileHandler struct {
	launchCmd    *command.LaunchPurchaseCommand
	cancelCmd    *command.CancelPurchaseCommand
	verifyCmd    *command.VerifyPendingCommand
	sweepCmd     *command.SweepPendingCommand
	recurringCmd *command.ManageRecurringCommand
	listQuery    *query.ListPendingQuery
	catalogQuery *query.GetCatalogQuery
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(
	launchCmd *command.LaunchPurchaseCommand,
	cancelCmd *command.CancelPurchaseCommand,
	verifyCmd *command.VerifyPendingCommand,
	sweepCmd *command.SweepPendingCommand,
	recurringCmd *command.ManageRecurringCommand,
	listQuery *query.ListPendingQuery,
	catalogQuery *query.GetCatalogQuery,
) *ReconcileHandler {
	return &ReconcileHandler{
		launchCmd:    launchCmd,
		cancelCmd:    cancelCmd,
		verifyCmd:    verifyCmd,
		sweepCmd:     sweepCmd,
		recurringCmd: recurringCmd,
		listQuery:    listQuery,
		catalogQuery: catalogQuery,
	}
}

// LaunchPurchase starts a purchase flow. The storefront reports the result
// asynchronously; a 200 here only means the flow was launched.
func (h *ReconcileHandler) LaunchPurchase(c *gin.Context) {
	var req dto.LaunchPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	if err := h.launchCmd.Execute(c.Request.Context(), &req); err != nil {
		var flowErr *domainErrors.FlowError
		if errors.As(err, &flowErr) {
			// The embedding application must run the login/update flow.
			response.Error(c, 428, "FLOW_REQUIRED", flowErr.Error())
			return
		}
		response.ServiceUnavailable(c, err.Error())
		return
	}
	response.OK(c, gin.H{"launched": true})
}

// CancelPurchase abandons an unverified purchase flow.
func (h *ReconcileHandler) CancelPurchase(c *gin.Context) {
	var req dto.CancelPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	if err := h.cancelCmd.Execute(&req); err != nil {
		response.Conflict(c, err.Error())
		return
	}
	response.OK(c, gin.H{"cancelled": true})
}

// VerifyPending verifies a single pending order with the backend.
func (h *ReconcileHandler) VerifyPending(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req dto.VerifyPendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	resp, err := h.verifyCmd.Execute(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, resp)
}

// SweepPending verifies every pending order, oldest first.
func (h *ReconcileHandler) SweepPending(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "User not authenticated")
		return
	}
	response.OK(c, h.sweepCmd.Execute(c.Request.Context(), userID))
}

// ManageRecurring requests an auto-renew state change for a subscription.
func (h *ReconcileHandler) ManageRecurring(c *gin.Context) {
	var req dto.ManageRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	if err := h.recurringCmd.Execute(c.Request.Context(), &req); err != nil {
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, gin.H{"requested": true})
}

// ListPending reports the orders still awaiting backend confirmation.
func (h *ReconcileHandler) ListPending(c *gin.Context) {
	response.OK(c, h.listQuery.Execute())
}

// Catalog reports the storefront catalog, cheapest first.
func (h *ReconcileHandler) Catalog(c *gin.Context) {
	response.OK(c, h.catalogQuery.Execute())
}
