// internal/models/market.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// Listing mirrors a ledger listing for durable storage. The primary
// key is the engine-assigned sequential id, not a generated uuid; the
// engine owns id allocation.
type Listing struct {
	ID          uint64         `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Seller      string         `json:"seller" gorm:"size:64;not null;index"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Category    string         `json:"category" gorm:"size:100;index"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`
	Price       int64          `json:"price" gorm:"not null"`
	ContentRef  string         `json:"content_ref" gorm:"size:512;not null"`
	Active      bool           `json:"active" gorm:"default:true;index"`
	ListedAt    uint64         `json:"listed_at" gorm:"not null"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Purchase is keyed by the (buyer, listing) pair; a buyer holds at
// most one record per listing and records are never deleted.
type Purchase struct {
	Buyer         string    `json:"buyer" gorm:"size:64;primaryKey"`
	ListingID     uint64    `json:"listing_id" gorm:"primaryKey;autoIncrement:false"`
	PricePaid     int64     `json:"price_paid" gorm:"not null"`
	AccessGranted bool      `json:"access_granted" gorm:"default:true"`
	PurchasedAt   uint64    `json:"purchased_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SellerStats struct {
	Seller       string    `json:"seller" gorm:"size:64;primaryKey"`
	TotalSales   uint64    `json:"total_sales" gorm:"default:0"`
	TotalRevenue int64     `json:"total_revenue" gorm:"default:0"`
	DataCount    uint64    `json:"data_count" gorm:"default:0"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type BuyerStats struct {
	Buyer          string    `json:"buyer" gorm:"size:64;primaryKey"`
	TotalPurchases uint64    `json:"total_purchases" gorm:"default:0"`
	TotalSpent     int64     `json:"total_spent" gorm:"default:0"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MarketConfig is a single-row table holding the two process-wide
// scalars the engine persists between restarts.
type MarketConfig struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	FeeRateBps    uint32    `json:"fee_rate_bps" gorm:"not null"`
	NextListingID uint64    `json:"next_listing_id" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Account stores a principal's marketplace balance, in the smallest
// currency unit.
type Account struct {
	Principal string    `json:"principal" gorm:"size:64;primaryKey"`
	Balance   int64     `json:"balance" gorm:"default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deposit tracks a stripe top-up from intent creation to the bank
// credit, so a confirmed intent can be credited exactly once.
type Deposit struct {
	BaseModel
	Principal       string        `json:"principal" gorm:"size:64;not null;index"`
	Amount          int64         `json:"amount" gorm:"not null"`
	PaymentIntentID string        `json:"payment_intent_id" gorm:"size:255;uniqueIndex"`
	Status          DepositStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CompletedAt     *time.Time    `json:"completed_at"`
}
