// internal/ledger/store.go
package ledger

import "math"

// Default marketplace fee: 250 basis points (2.5%).
const (
	DefaultFeeRateBps = 250
	MaxFeeRateBps     = 1000
	bpsDenominator    = 10000

	// MaxListingPrice bounds prices so price * MaxFeeRateBps stays
	// within int64 in the fee calculation.
	MaxListingPrice int64 = math.MaxInt64 / MaxFeeRateBps
)

// Listing is a seller's offer of a dataset at a fixed price.
// The id is assigned by the store and never changes; price stays
// positive for the listing's whole lifetime. Listings are never
// deleted, deactivation flips Active only.
type Listing struct {
	ID          uint64   `json:"id"`
	Seller      string   `json:"seller"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Price       int64    `json:"price"`
	ContentRef  string   `json:"content_ref"`
	Active      bool     `json:"active"`
	CreatedAt   uint64   `json:"created_at"`
}

// Purchase proves a buyer paid for and was granted access to a listing.
// Its existence implies the payment transfer already completed.
// AccessGranted starts true and only an administrative revoke may
// flip it to false; nothing flips it back.
type Purchase struct {
	Buyer         string `json:"buyer"`
	ListingID     uint64 `json:"listing_id"`
	PricePaid     int64  `json:"price_paid"`
	AccessGranted bool   `json:"access_granted"`
	PurchasedAt   uint64 `json:"purchased_at"`
}

// SellerStats aggregates a seller's lifetime activity. Counters only
// ever grow.
type SellerStats struct {
	Seller       string `json:"seller"`
	TotalSales   uint64 `json:"total_sales"`
	TotalRevenue int64  `json:"total_revenue"`
	DataCount    uint64 `json:"data_count"`
}

// BuyerStats aggregates a buyer's lifetime activity. TotalSpent is the
// gross price paid, before the fee split.
type BuyerStats struct {
	Buyer          string `json:"buyer"`
	TotalPurchases uint64 `json:"total_purchases"`
	TotalSpent     int64  `json:"total_spent"`
}

type purchaseKey struct {
	buyer     string
	listingID uint64
}

// Store is the single source of truth for the marketplace ledger: the
// four entity collections plus the two configuration scalars. It is a
// plain value-holder with no locking of its own; the Engine serializes
// every operation against it. Each test builds its own Store, there is
// no package-level state.
type Store struct {
	listings    map[uint64]*Listing
	purchases   map[purchaseKey]*Purchase
	sellerStats map[string]*SellerStats
	buyerStats  map[string]*BuyerStats

	feeRateBps    uint32
	nextListingID uint64
}

func NewStore() *Store {
	return &Store{
		listings:      make(map[uint64]*Listing),
		purchases:     make(map[purchaseKey]*Purchase),
		sellerStats:   make(map[string]*SellerStats),
		buyerStats:    make(map[string]*BuyerStats),
		feeRateBps:    DefaultFeeRateBps,
		nextListingID: 1,
	}
}

func (s *Store) listing(id uint64) (*Listing, bool) {
	l, ok := s.listings[id]
	return l, ok
}

func (s *Store) purchase(buyer string, listingID uint64) (*Purchase, bool) {
	p, ok := s.purchases[purchaseKey{buyer, listingID}]
	return p, ok
}

func (s *Store) putPurchase(p *Purchase) {
	s.purchases[purchaseKey{p.Buyer, p.ListingID}] = p
}

// sellerStatsFor returns the seller's aggregate, creating the
// zero-valued record on first reference. Absence and zero-state are
// indistinguishable on purpose.
func (s *Store) sellerStatsFor(seller string) *SellerStats {
	st, ok := s.sellerStats[seller]
	if !ok {
		st = &SellerStats{Seller: seller}
		s.sellerStats[seller] = st
	}
	return st
}

func (s *Store) buyerStatsFor(buyer string) *BuyerStats {
	st, ok := s.buyerStats[buyer]
	if !ok {
		st = &BuyerStats{Buyer: buyer}
		s.buyerStats[buyer] = st
	}
	return st
}

// allocateListingID hands out the current counter value and advances
// it. Ids are strictly sequential from 1 with no reuse.
func (s *Store) allocateListingID() uint64 {
	id := s.nextListingID
	s.nextListingID++
	return id
}

// Restore pre-loads a persisted listing, bumping the id counter past
// it. Used when rebuilding the store from durable storage at startup.
func (s *Store) RestoreListing(l *Listing) {
	cp := *l
	s.listings[cp.ID] = &cp
	if cp.ID >= s.nextListingID {
		s.nextListingID = cp.ID + 1
	}
}

func (s *Store) RestorePurchase(p *Purchase) {
	cp := *p
	s.putPurchase(&cp)
}

func (s *Store) RestoreSellerStats(st *SellerStats) {
	cp := *st
	s.sellerStats[cp.Seller] = &cp
}

func (s *Store) RestoreBuyerStats(st *BuyerStats) {
	cp := *st
	s.buyerStats[cp.Buyer] = &cp
}

func (s *Store) RestoreConfig(feeRateBps uint32, nextListingID uint64) {
	if feeRateBps <= MaxFeeRateBps {
		s.feeRateBps = feeRateBps
	}
	if nextListingID > s.nextListingID {
		s.nextListingID = nextListingID
	}
}
