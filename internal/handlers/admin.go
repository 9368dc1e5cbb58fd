// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/datamartlabs/datamart-backend/internal/services"
	"github.com/datamartlabs/datamart-backend/internal/utils"
)

// AdminHandler exposes the two operations gated on the administrator
// identity rather than listing ownership. The AdminRequired middleware
// coarse-filters on role; the ledger engine still compares the caller
// against its fixed administrator principal.
type AdminHandler struct {
	marketService *services.MarketService
}

func NewAdminHandler(marketService *services.MarketService) *AdminHandler {
	return &AdminHandler{marketService: marketService}
}

type SetFeeRequest struct {
	FeeRateBps uint32 `json:"fee_rate_bps"`
}

type RevokeAccessRequest struct {
	Buyer     string `json:"buyer" validate:"required"`
	ListingID uint64 `json:"listing_id" validate:"required,gt=0"`
}

// PUT /admin/fee
func (h *AdminHandler) SetFee(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}

	var req SetFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if err := h.marketService.SetFee(principal, req.FeeRateBps); err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"fee_rate_bps": h.marketService.FeeRateBps()})
}

// POST /admin/revoke-access
func (h *AdminHandler) RevokeAccess(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}

	var req RevokeAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.marketService.RevokeAccess(principal, req.Buyer, req.ListingID); err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Access revoked"})
}
