// internal/handlers/wallet.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/datamartlabs/datamart-backend/internal/services"
	"github.com/datamartlabs/datamart-backend/internal/utils"
)

type WalletHandler struct {
	paymentService *services.PaymentService
}

func NewWalletHandler(paymentService *services.PaymentService) *WalletHandler {
	return &WalletHandler{paymentService: paymentService}
}

// GET /wallet/balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}

	utils.SuccessResponse(c, gin.H{
		"balance":  h.paymentService.Balance(principal),
		"currency": "USD",
	})
}

// POST /wallet/deposit
func (h *WalletHandler) CreateDeposit(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}

	var req services.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.paymentService.CreateDepositIntent(principal, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, resp)
}

// POST /wallet/deposit/confirm
func (h *WalletHandler) ConfirmDeposit(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}

	var req services.ConfirmDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	deposit, err := h.paymentService.ConfirmDeposit(principal, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"deposit": deposit})
}

// GET /wallet/deposits
func (h *WalletHandler) GetDepositHistory(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	deposits, total, err := h.paymentService.GetDepositHistory(principal, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(deposits, total, params)
	utils.PaginatedResponse(c, result)
}
