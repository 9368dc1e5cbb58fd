// internal/tests/market_api_test.go
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/datamartlabs/datamart-backend/internal/bank"
	"github.com/datamartlabs/datamart-backend/internal/config"
	"github.com/datamartlabs/datamart-backend/internal/handlers"
	"github.com/datamartlabs/datamart-backend/internal/middleware"
	"github.com/datamartlabs/datamart-backend/internal/models"
	"github.com/datamartlabs/datamart-backend/internal/services"
	"github.com/datamartlabs/datamart-backend/internal/utils"
)

// MarketAPITestSuite exercises the HTTP surface end to end against a
// market service running in embedded mode, with no database behind it.
type MarketAPITestSuite struct {
	suite.Suite

	router *gin.Engine
	bank   *bank.Bank
	market *services.MarketService

	adminID  uuid.UUID
	sellerID uuid.UUID
	buyerID  uuid.UUID

	adminToken  string
	sellerToken string
	buyerToken  string
}

func (s *MarketAPITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("market-api-test-secret")

	s.adminID = uuid.New()
	s.sellerID = uuid.New()
	s.buyerID = uuid.New()

	var err error
	s.adminToken, err = utils.GenerateJWT(s.adminID, "admin", string(models.UserTypeAdmin), 1)
	s.Require().NoError(err)
	s.sellerToken, err = utils.GenerateJWT(s.sellerID, "seller", string(models.UserTypeSeller), 1)
	s.Require().NoError(err)
	s.buyerToken, err = utils.GenerateJWT(s.buyerID, "buyer", string(models.UserTypeBuyer), 1)
	s.Require().NoError(err)
}

// SetupTest rebuilds the service and router so every test starts from
// an empty market and empty accounts.
func (s *MarketAPITestSuite) SetupTest() {
	s.bank = bank.New()
	s.market = services.NewMarketService(nil, &config.Config{}, s.bank, s.adminID.String(), nil)

	marketHandler := handlers.NewMarketHandler(s.market)
	adminHandler := handlers.NewAdminHandler(s.market)

	s.router = gin.New()
	v1 := s.router.Group("/v1")

	listings := v1.Group("/listings")
	listings.GET("/:id", marketHandler.GetListing)
	protected := listings.Group("")
	protected.Use(middleware.AuthRequired())
	{
		protected.POST("", marketHandler.CreateListing)
		protected.PUT("/:id", marketHandler.UpdateListing)
		protected.DELETE("/:id", marketHandler.DeactivateListing)
		protected.POST("/:id/purchase", marketHandler.PurchaseListing)
		protected.GET("/:id/access", marketHandler.GetAccess)
		protected.GET("/:id/access/check", marketHandler.CheckAccess)
	}

	stats := v1.Group("/stats")
	stats.GET("/sellers/:principal", marketHandler.GetSellerStats)
	stats.GET("/buyers/:principal", marketHandler.GetBuyerStats)

	v1.GET("/market/fee", marketHandler.GetFeeRate)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		adminGroup.PUT("/fee", adminHandler.SetFee)
		adminGroup.POST("/revoke-access", adminHandler.RevokeAccess)
	}
}

func (s *MarketAPITestSuite) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *MarketAPITestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *MarketAPITestSuite) errorCode(w *httptest.ResponseRecorder) string {
	resp := s.decode(w)
	errObj, ok := resp["error"].(map[string]interface{})
	s.Require().True(ok, "expected error payload, got %s", w.Body.String())
	return errObj["code"].(string)
}

func (s *MarketAPITestSuite) createListing(price int64) uint64 {
	w := s.request("POST", "/v1/listings", s.sellerToken, gin.H{
		"title":       "Retail footfall dataset",
		"description": "Hourly store visit counts for 2025, all regions.",
		"category":    "retail",
		"tags":        []string{"footfall", "hourly"},
		"price":       price,
		"content_ref": "s3://datamart-payloads/footfall-2025.parquet",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	resp := s.decode(w)
	data := resp["data"].(map[string]interface{})
	listing := data["listing"].(map[string]interface{})
	return uint64(listing["id"].(float64))
}

func (s *MarketAPITestSuite) TestCreateAndFetchListing() {
	id := s.createListing(1000)
	s.Equal(uint64(1), id)

	w := s.request("GET", fmt.Sprintf("/v1/listings/%d", id), "", nil)
	s.Equal(http.StatusOK, w.Code)

	resp := s.decode(w)
	listing := resp["data"].(map[string]interface{})["listing"].(map[string]interface{})
	s.Equal(s.sellerID.String(), listing["seller"])
	s.Equal(float64(1000), listing["price"])
	s.Equal(true, listing["active"])
}

func (s *MarketAPITestSuite) TestCreateListingRequiresAuth() {
	w := s.request("POST", "/v1/listings", "", gin.H{
		"title":       "Retail footfall dataset",
		"description": "Hourly store visit counts for 2025, all regions.",
		"category":    "retail",
		"price":       1000,
		"content_ref": "s3://datamart-payloads/footfall-2025.parquet",
	})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *MarketAPITestSuite) TestCreateListingRejectsBadInput() {
	w := s.request("POST", "/v1/listings", s.sellerToken, gin.H{
		"title":       "x",
		"description": "too short",
		"category":    "retail",
		"price":       0,
		"content_ref": "ref",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", s.errorCode(w))
}

func (s *MarketAPITestSuite) TestGetMissingListing() {
	w := s.request("GET", "/v1/listings/42", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("NOT_FOUND", s.errorCode(w))
}

func (s *MarketAPITestSuite) TestPurchaseFlow() {
	id := s.createListing(1000)
	s.Require().NoError(s.bank.Deposit(s.buyerID.String(), 5000))

	w := s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	resp := s.decode(w)
	purchase := resp["data"].(map[string]interface{})["purchase"].(map[string]interface{})
	s.Equal(float64(1000), purchase["price_paid"])
	s.Equal(true, purchase["access_granted"])

	// Default fee is 250 bps, so 25 goes to the operator.
	s.Equal(int64(4000), s.bank.Balance(s.buyerID.String()))
	s.Equal(int64(975), s.bank.Balance(s.sellerID.String()))
	s.Equal(int64(25), s.bank.Balance(s.adminID.String()))

	// Access resolves to the stored content reference.
	w = s.request("GET", fmt.Sprintf("/v1/listings/%d/access", id), s.buyerToken, nil)
	s.Equal(http.StatusOK, w.Code)
	access := s.decode(w)["data"].(map[string]interface{})
	s.Equal("s3://datamart-payloads/footfall-2025.parquet", access["content_ref"])

	w = s.request("GET", fmt.Sprintf("/v1/listings/%d/access/check", id), s.buyerToken, nil)
	s.Equal(http.StatusOK, w.Code)
	check := s.decode(w)["data"].(map[string]interface{})
	s.Equal(true, check["has_access"])
}

func (s *MarketAPITestSuite) TestDuplicatePurchaseConflicts() {
	id := s.createListing(1000)
	s.Require().NoError(s.bank.Deposit(s.buyerID.String(), 5000))

	w := s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("ALREADY_EXISTS", s.errorCode(w))

	s.Equal(int64(4000), s.bank.Balance(s.buyerID.String()))
}

func (s *MarketAPITestSuite) TestPurchaseWithoutFunds() {
	id := s.createListing(1000)

	w := s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Equal(http.StatusPaymentRequired, w.Code)
	s.Equal("INSUFFICIENT_FUNDS", s.errorCode(w))
}

func (s *MarketAPITestSuite) TestPurchaseDeactivatedListing() {
	id := s.createListing(1000)
	s.Require().NoError(s.bank.Deposit(s.buyerID.String(), 5000))

	w := s.request("DELETE", fmt.Sprintf("/v1/listings/%d", id), s.sellerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("UNAVAILABLE", s.errorCode(w))
}

func (s *MarketAPITestSuite) TestAccessWithoutPurchase() {
	id := s.createListing(1000)

	w := s.request("GET", fmt.Sprintf("/v1/listings/%d/access", id), s.buyerToken, nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("UNAUTHORIZED", s.errorCode(w))
}

func (s *MarketAPITestSuite) TestUpdateListingOwnerOnly() {
	id := s.createListing(1000)

	body := gin.H{
		"price":       2500,
		"description": "Hourly store visit counts for 2025, all regions, weekly refresh.",
		"active":      true,
	}

	w := s.request("PUT", fmt.Sprintf("/v1/listings/%d", id), s.buyerToken, body)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("UNAUTHORIZED", s.errorCode(w))

	w = s.request("PUT", fmt.Sprintf("/v1/listings/%d", id), s.sellerToken, body)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	listing := s.decode(w)["data"].(map[string]interface{})["listing"].(map[string]interface{})
	s.Equal(float64(2500), listing["price"])
}

func (s *MarketAPITestSuite) TestAdminSetFee() {
	w := s.request("PUT", "/v1/admin/fee", s.adminToken, gin.H{"fee_rate_bps": 500})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.request("GET", "/v1/market/fee", "", nil)
	s.Equal(http.StatusOK, w.Code)
	fee := s.decode(w)["data"].(map[string]interface{})
	s.Equal(float64(500), fee["fee_rate_bps"])
}

func (s *MarketAPITestSuite) TestSetFeeAboveCap() {
	w := s.request("PUT", "/v1/admin/fee", s.adminToken, gin.H{"fee_rate_bps": 1001})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_PRICE", s.errorCode(w))
}

func (s *MarketAPITestSuite) TestSetFeeRequiresAdminRole() {
	w := s.request("PUT", "/v1/admin/fee", s.sellerToken, gin.H{"fee_rate_bps": 500})
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *MarketAPITestSuite) TestRevokeAccess() {
	id := s.createListing(1000)
	s.Require().NoError(s.bank.Deposit(s.buyerID.String(), 5000))

	w := s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.request("POST", "/v1/admin/revoke-access", s.adminToken, gin.H{
		"buyer":      s.buyerID.String(),
		"listing_id": id,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.request("GET", fmt.Sprintf("/v1/listings/%d/access", id), s.buyerToken, nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("UNAUTHORIZED", s.errorCode(w))

	w = s.request("GET", fmt.Sprintf("/v1/listings/%d/access/check", id), s.buyerToken, nil)
	check := s.decode(w)["data"].(map[string]interface{})
	s.Equal(false, check["has_access"])

	// The purchase record survives the revoke, so buying again still
	// conflicts and no money moves.
	w = s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("ALREADY_EXISTS", s.errorCode(w))
	s.Equal(int64(4000), s.bank.Balance(s.buyerID.String()))
}

func (s *MarketAPITestSuite) TestRevokeAccessMissingPurchase() {
	id := s.createListing(1000)

	w := s.request("POST", "/v1/admin/revoke-access", s.adminToken, gin.H{
		"buyer":      s.buyerID.String(),
		"listing_id": id,
	})
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("NOT_FOUND", s.errorCode(w))
}

func (s *MarketAPITestSuite) TestStatsEndpoints() {
	id := s.createListing(1000)
	s.Require().NoError(s.bank.Deposit(s.buyerID.String(), 5000))

	w := s.request("POST", fmt.Sprintf("/v1/listings/%d/purchase", id), s.buyerToken, nil)
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.request("GET", "/v1/stats/sellers/"+s.sellerID.String(), "", nil)
	s.Equal(http.StatusOK, w.Code)
	sellerStats := s.decode(w)["data"].(map[string]interface{})["stats"].(map[string]interface{})
	s.Equal(float64(1), sellerStats["total_sales"])
	s.Equal(float64(975), sellerStats["total_revenue"])
	s.Equal(float64(1), sellerStats["data_count"])

	w = s.request("GET", "/v1/stats/buyers/"+s.buyerID.String(), "", nil)
	s.Equal(http.StatusOK, w.Code)
	buyerStats := s.decode(w)["data"].(map[string]interface{})["stats"].(map[string]interface{})
	s.Equal(float64(1), buyerStats["total_purchases"])
	s.Equal(float64(1000), buyerStats["total_spent"])
}

func (s *MarketAPITestSuite) TestStatsForUnknownPrincipal() {
	w := s.request("GET", "/v1/stats/sellers/"+uuid.NewString(), "", nil)
	s.Equal(http.StatusOK, w.Code)
	stats := s.decode(w)["data"].(map[string]interface{})["stats"].(map[string]interface{})
	s.Equal(float64(0), stats["total_sales"])
	s.Equal(float64(0), stats["total_revenue"])
}

func TestMarketAPISuite(t *testing.T) {
	suite.Run(t, new(MarketAPITestSuite))
}
