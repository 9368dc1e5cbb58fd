// internal/services/market_service.go
package services

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/datamartlabs/datamart-backend/internal/bank"
	"github.com/datamartlabs/datamart-backend/internal/config"
	"github.com/datamartlabs/datamart-backend/internal/database"
	"github.com/datamartlabs/datamart-backend/internal/ledger"
	"github.com/datamartlabs/datamart-backend/internal/models"
	"github.com/datamartlabs/datamart-backend/internal/utils"
)

// MarketService owns the ledger engine and is the only component that
// drives mutations through it. The in-memory store is authoritative;
// the database is a write-through mirror used for durability and for
// the browse/search surface. A nil db runs the service in embedded
// mode with no persistence.
type MarketService struct {
	db             *gorm.DB
	cfg            *config.Config
	bank           *bank.Bank
	engine         *ledger.Engine
	storageService *StorageService
}

type CreateListingRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=255"`
	Description string   `json:"description" validate:"required,min=10"`
	Category    string   `json:"category" validate:"required,max=100"`
	Tags        []string `json:"tags,omitempty"`
	Price       int64    `json:"price" validate:"required,gt=0"`
	ContentRef  string   `json:"content_ref" validate:"required,max=512"`
}

type UpdateListingRequest struct {
	Price       int64  `json:"price" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,min=10"`
	Active      bool   `json:"active"`
}

type ListingSearchParams struct {
	utils.PaginationParams
	Seller   string `json:"seller,omitempty"`
	PriceMin *int64 `json:"price_min,omitempty"`
	PriceMax *int64 `json:"price_max,omitempty"`
	All      bool   `json:"all,omitempty"` // include inactive listings
}

func NewMarketService(db *gorm.DB, cfg *config.Config, bnk *bank.Bank, adminPrincipal string, storageService *StorageService) *MarketService {
	store := ledger.NewStore()
	// The marketplace operator collects the fee leg on its own account.
	engine := ledger.NewEngine(store, bnk, nil, adminPrincipal, adminPrincipal)

	return &MarketService{
		db:             db,
		cfg:            cfg,
		bank:           bnk,
		engine:         engine,
		storageService: storageService,
	}
}

// Engine exposes the underlying ledger engine for read-only queries.
func (s *MarketService) Engine() *ledger.Engine {
	return s.engine
}

// LoadState rebuilds the in-memory ledger and the bank from the
// database. Called once at startup, before the service takes traffic.
func (s *MarketService) LoadState() error {
	if s.db == nil {
		return nil
	}

	var listings []models.Listing
	if err := s.db.Find(&listings).Error; err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}
	var purchases []models.Purchase
	if err := s.db.Find(&purchases).Error; err != nil {
		return fmt.Errorf("failed to load purchases: %w", err)
	}
	var sellerStats []models.SellerStats
	if err := s.db.Find(&sellerStats).Error; err != nil {
		return fmt.Errorf("failed to load seller stats: %w", err)
	}
	var buyerStats []models.BuyerStats
	if err := s.db.Find(&buyerStats).Error; err != nil {
		return fmt.Errorf("failed to load buyer stats: %w", err)
	}
	var accounts []models.Account
	if err := s.db.Find(&accounts).Error; err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	store := ledger.NewStore()
	for i := range listings {
		l := listings[i]
		store.RestoreListing(&ledger.Listing{
			ID:          l.ID,
			Seller:      l.Seller,
			Title:       l.Title,
			Description: l.Description,
			Category:    l.Category,
			Tags:        l.Tags,
			Price:       l.Price,
			ContentRef:  l.ContentRef,
			Active:      l.Active,
			CreatedAt:   l.ListedAt,
		})
	}
	for i := range purchases {
		p := purchases[i]
		store.RestorePurchase(&ledger.Purchase{
			Buyer:         p.Buyer,
			ListingID:     p.ListingID,
			PricePaid:     p.PricePaid,
			AccessGranted: p.AccessGranted,
			PurchasedAt:   p.PurchasedAt,
		})
	}
	for i := range sellerStats {
		st := sellerStats[i]
		store.RestoreSellerStats(&ledger.SellerStats{
			Seller:       st.Seller,
			TotalSales:   st.TotalSales,
			TotalRevenue: st.TotalRevenue,
			DataCount:    st.DataCount,
		})
	}
	for i := range buyerStats {
		st := buyerStats[i]
		store.RestoreBuyerStats(&ledger.BuyerStats{
			Buyer:          st.Buyer,
			TotalPurchases: st.TotalPurchases,
			TotalSpent:     st.TotalSpent,
		})
	}

	var cfgRow models.MarketConfig
	if err := s.db.First(&cfgRow, 1).Error; err == nil {
		store.RestoreConfig(cfgRow.FeeRateBps, cfgRow.NextListingID)
	} else {
		store.RestoreConfig(s.cfg.Market.FeeRateBps, 1)
	}

	for i := range accounts {
		s.bank.Restore(accounts[i].Principal, accounts[i].Balance)
	}

	s.engine = ledger.NewEngine(store, s.bank, nil, s.engine.Admin(), s.engine.Admin())

	logrus.WithFields(logrus.Fields{
		"listings":  len(listings),
		"purchases": len(purchases),
		"accounts":  len(accounts),
	}).Info("Ledger state loaded")

	return nil
}

func (s *MarketService) CreateListing(caller string, req *CreateListingRequest) (*ledger.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	id, err := s.engine.ListData(caller, req.Title, req.Description, req.Category, req.Tags, req.Price, req.ContentRef)
	if err != nil {
		return nil, err
	}

	l, _ := s.engine.GetListing(id)
	s.persist(func(tx *gorm.DB) error {
		if err := s.persistListing(tx, id); err != nil {
			return err
		}
		if err := s.persistSellerStats(tx, caller); err != nil {
			return err
		}
		return s.persistConfig(tx)
	})

	return &l, nil
}

func (s *MarketService) GetListing(listingID uint64) (*ledger.Listing, error) {
	l, ok := s.engine.GetListing(listingID)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &l, nil
}

// SearchListings serves the browse surface from the database mirror.
// Only active listings show unless All is set.
func (s *MarketService) SearchListings(params ListingSearchParams) ([]models.Listing, int64, error) {
	if s.db == nil {
		return nil, 0, fmt.Errorf("listing search requires a database")
	}

	query := s.db.Model(&models.Listing{})

	if !params.All {
		query = query.Where("active = ?", true)
	}
	if params.Seller != "" {
		query = query.Where("seller = ?", params.Seller)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}
	if params.PriceMin != nil {
		query = query.Where("price >= ?", *params.PriceMin)
	}
	if params.PriceMax != nil {
		query = query.Where("price <= ?", *params.PriceMax)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	allowedSortFields := []string{"listed_at", "price", "title", "id"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	return listings, total, nil
}

func (s *MarketService) UpdateListing(caller string, listingID uint64, req *UpdateListingRequest) (*ledger.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.engine.UpdateListing(caller, listingID, req.Price, req.Description, req.Active); err != nil {
		return nil, err
	}

	l, _ := s.engine.GetListing(listingID)
	s.persist(func(tx *gorm.DB) error {
		return s.persistListing(tx, listingID)
	})

	return &l, nil
}

func (s *MarketService) DeactivateListing(caller string, listingID uint64) error {
	if err := s.engine.DeactivateListing(caller, listingID); err != nil {
		return err
	}

	s.persist(func(tx *gorm.DB) error {
		return s.persistListing(tx, listingID)
	})
	return nil
}

// Purchase buys a listing for caller and mirrors the full effect (new
// purchase record, both stat rows, three account balances) to the
// database.
func (s *MarketService) Purchase(caller string, listingID uint64) (*ledger.Purchase, error) {
	l, ok := s.engine.GetListing(listingID)
	if !ok {
		return nil, ledger.ErrNotFound
	}

	if err := s.engine.PurchaseData(caller, listingID); err != nil {
		return nil, err
	}

	p, _ := s.engine.GetPurchase(caller, listingID)
	s.persist(func(tx *gorm.DB) error {
		if err := s.persistPurchase(tx, caller, listingID); err != nil {
			return err
		}
		if err := s.persistSellerStats(tx, l.Seller); err != nil {
			return err
		}
		if err := s.persistBuyerStats(tx, caller); err != nil {
			return err
		}
		return s.persistAccounts(tx, caller, l.Seller, s.engine.Admin())
	})

	logrus.WithFields(logrus.Fields{
		"listing_id": listingID,
		"buyer":      caller,
		"seller":     l.Seller,
		"price":      l.Price,
	}).Info("Listing purchased")

	return &p, nil
}

// GetAccess returns the content reference for a purchased listing,
// resolved to a downloadable URL when a storage backend is configured.
func (s *MarketService) GetAccess(caller string, listingID uint64) (string, error) {
	ref, err := s.engine.GetDataAccess(caller, listingID)
	if err != nil {
		return "", err
	}

	if s.storageService != nil {
		return s.storageService.ResolveContentRef(ref)
	}
	return ref, nil
}

func (s *MarketService) HasAccess(buyer string, listingID uint64) bool {
	return s.engine.HasAccess(buyer, listingID)
}

func (s *MarketService) GetPurchase(buyer string, listingID uint64) (*ledger.Purchase, error) {
	p, ok := s.engine.GetPurchase(buyer, listingID)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &p, nil
}

func (s *MarketService) GetSellerStats(seller string) ledger.SellerStats {
	return s.engine.GetSellerStats(seller)
}

func (s *MarketService) GetBuyerStats(buyer string) ledger.BuyerStats {
	return s.engine.GetBuyerStats(buyer)
}

func (s *MarketService) SetFee(caller string, newFeeBps uint32) error {
	if err := s.engine.SetFee(caller, newFeeBps); err != nil {
		return err
	}

	s.persist(s.persistConfig)

	logrus.WithField("fee_bps", newFeeBps).Info("Marketplace fee updated")
	return nil
}

func (s *MarketService) FeeRateBps() uint32 {
	return s.engine.FeeRateBps()
}

func (s *MarketService) RevokeAccess(caller, buyer string, listingID uint64) error {
	if err := s.engine.RevokeAccess(caller, buyer, listingID); err != nil {
		return err
	}

	s.persist(func(tx *gorm.DB) error {
		return s.persistPurchase(tx, buyer, listingID)
	})

	logrus.WithFields(logrus.Fields{
		"listing_id": listingID,
		"buyer":      buyer,
	}).Warn("Access revoked")
	return nil
}

// persist mirrors a committed engine mutation to the database. The
// engine already accepted the operation, so a mirror failure is logged
// rather than surfaced; the row converges on the next write or reload.
func (s *MarketService) persist(fn func(tx *gorm.DB) error) {
	if s.db == nil {
		return
	}
	if err := database.WithTransaction(s.db, fn); err != nil {
		logrus.WithError(err).Error("Failed to mirror ledger state to database")
	}
}

func (s *MarketService) persistListing(tx *gorm.DB, listingID uint64) error {
	l, ok := s.engine.GetListing(listingID)
	if !ok {
		return fmt.Errorf("listing %d missing from store", listingID)
	}
	row := models.Listing{
		ID:          l.ID,
		Seller:      l.Seller,
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Tags:        l.Tags,
		Price:       l.Price,
		ContentRef:  l.ContentRef,
		Active:      l.Active,
		ListedAt:    l.CreatedAt,
	}
	return tx.Save(&row).Error
}

func (s *MarketService) persistPurchase(tx *gorm.DB, buyer string, listingID uint64) error {
	p, ok := s.engine.GetPurchase(buyer, listingID)
	if !ok {
		return fmt.Errorf("purchase (%s, %d) missing from store", buyer, listingID)
	}
	row := models.Purchase{
		Buyer:         p.Buyer,
		ListingID:     p.ListingID,
		PricePaid:     p.PricePaid,
		AccessGranted: p.AccessGranted,
		PurchasedAt:   p.PurchasedAt,
	}
	return tx.Save(&row).Error
}

func (s *MarketService) persistSellerStats(tx *gorm.DB, seller string) error {
	st := s.engine.GetSellerStats(seller)
	row := models.SellerStats{
		Seller:       st.Seller,
		TotalSales:   st.TotalSales,
		TotalRevenue: st.TotalRevenue,
		DataCount:    st.DataCount,
	}
	return tx.Save(&row).Error
}

func (s *MarketService) persistBuyerStats(tx *gorm.DB, buyer string) error {
	st := s.engine.GetBuyerStats(buyer)
	row := models.BuyerStats{
		Buyer:          st.Buyer,
		TotalPurchases: st.TotalPurchases,
		TotalSpent:     st.TotalSpent,
	}
	return tx.Save(&row).Error
}

func (s *MarketService) persistAccounts(tx *gorm.DB, principals ...string) error {
	for _, principal := range principals {
		row := models.Account{
			Principal: principal,
			Balance:   s.bank.Balance(principal),
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *MarketService) persistConfig(tx *gorm.DB) error {
	row := models.MarketConfig{
		ID:            1,
		FeeRateBps:    s.engine.FeeRateBps(),
		NextListingID: s.engine.NextListingID(),
	}
	return tx.Save(&row).Error
}
