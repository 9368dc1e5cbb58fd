// internal/handlers/market.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/datamartlabs/datamart-backend/internal/services"
	"github.com/datamartlabs/datamart-backend/internal/utils"
)

type MarketHandler struct {
	marketService *services.MarketService
}

func NewMarketHandler(marketService *services.MarketService) *MarketHandler {
	return &MarketHandler{marketService: marketService}
}

func parseListingID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return 0, false
	}
	return id, true
}

func callerPrincipal(c *gin.Context) (string, bool) {
	principal, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return "", false
	}
	return principal, true
}

// GET /listings
func (h *MarketHandler) GetListings(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.ListingSearchParams{
		PaginationParams: params,
	}

	if seller := c.Query("seller"); seller != "" {
		searchParams.Seller = seller
	}
	if priceMinStr := c.Query("price_min"); priceMinStr != "" {
		if priceMin, err := strconv.ParseInt(priceMinStr, 10, 64); err == nil {
			searchParams.PriceMin = &priceMin
		}
	}
	if priceMaxStr := c.Query("price_max"); priceMaxStr != "" {
		if priceMax, err := strconv.ParseInt(priceMaxStr, 10, 64); err == nil {
			searchParams.PriceMax = &priceMax
		}
	}

	listings, total, err := h.marketService.SearchListings(searchParams)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(listings, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /listings
func (h *MarketHandler) CreateListing(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	listing, err := h.marketService.CreateListing(principal, &req)
	if err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"listing": listing})
}

// GET /listings/:id
func (h *MarketHandler) GetListing(c *gin.Context) {
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	listing, err := h.marketService.GetListing(id)
	if err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"listing": listing})
}

// PUT /listings/:id
func (h *MarketHandler) UpdateListing(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	var req services.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	listing, err := h.marketService.UpdateListing(principal, id, &req)
	if err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"listing": listing})
}

// DELETE /listings/:id
func (h *MarketHandler) DeactivateListing(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	if err := h.marketService.DeactivateListing(principal, id); err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Listing deactivated"})
}

// POST /listings/:id/purchase
func (h *MarketHandler) PurchaseListing(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	purchase, err := h.marketService.Purchase(principal, id)
	if err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"purchase": purchase})
}

// GET /listings/:id/access
func (h *MarketHandler) GetAccess(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	contentRef, err := h.marketService.GetAccess(principal, id)
	if err != nil {
		utils.LedgerErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"content_ref": contentRef})
}

// GET /listings/:id/access/check
func (h *MarketHandler) CheckAccess(c *gin.Context) {
	principal, ok := callerPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing_id": id,
		"has_access": h.marketService.HasAccess(principal, id),
	})
}

// GET /stats/sellers/:principal
func (h *MarketHandler) GetSellerStats(c *gin.Context) {
	stats := h.marketService.GetSellerStats(c.Param("principal"))
	utils.SuccessResponse(c, gin.H{"stats": stats})
}

// GET /stats/buyers/:principal
func (h *MarketHandler) GetBuyerStats(c *gin.Context) {
	stats := h.marketService.GetBuyerStats(c.Param("principal"))
	utils.SuccessResponse(c, gin.H{"stats": stats})
}

// GET /market/fee
func (h *MarketHandler) GetFeeRate(c *gin.Context) {
	utils.SuccessResponse(c, gin.H{"fee_rate_bps": h.marketService.FeeRateBps()})
}
