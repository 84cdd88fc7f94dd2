package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bivex/iap-reconciler/internal/application/command"
	"github.com/bivex/iap-reconciler/internal/application/dto"
)

// ChargeHandler serves the receipt-verification endpoints the game client
// posts to: /charge for the generic store, /gp_charge for Google Play.
// Responses are the bare {code, msg} contract, not the envelope the rest of
// the API uses; the client only reads the code.
type ChargeHandler struct {
	appleCmd  *command.VerifyChargeCommand
	googleCmd *command.VerifyChargeCommand
}

// NewChargeHandler creates a new charge handler
func NewChargeHandler(appleCmd, googleCmd *command.VerifyChargeCommand) *ChargeHandler {
	return &ChargeHandler{appleCmd: appleCmd, googleCmd: googleCmd}
}

// Charge verifies a generic-store receipt.
func (h *ChargeHandler) Charge(c *gin.Context) {
	h.serve(c, h.appleCmd)
}

// GPCharge verifies a Google Play receipt.
func (h *ChargeHandler) GPCharge(c *gin.Context) {
	h.serve(c, h.googleCmd)
}

func (h *ChargeHandler) serve(c *gin.Context, cmd *command.VerifyChargeCommand) {
	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, dto.ChargeResponse{
			Code: command.ChargeCodeInvalidReceipt,
			Msg:  "malformed request",
		})
		return
	}
	c.JSON(http.StatusOK, cmd.Execute(c.Request.Context(), &req))
}
