// internal/ledger/engine.go
package ledger

import (
	"sync"
	"time"
)

// Transferer is the external atomic value-movement primitive. A call
// either moves the full amount from one account to the other or fails
// without moving anything; lack of funds must surface as an
// attributable error.
type Transferer interface {
	Transfer(amount int64, from, to string) error
}

// Clock supplies the logical timestamps stamped onto listings and
// purchases. Implementations must be monotonically non-decreasing for
// the process lifetime.
type Clock interface {
	Now() uint64
}

// WallClock is the default Clock: unix seconds, clamped so it never
// runs backwards even if the wall clock does.
type WallClock struct {
	mtx  sync.Mutex
	last uint64
}

func (c *WallClock) Now() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	now := uint64(time.Now().Unix())
	if now < c.last {
		now = c.last
	}
	c.last = now
	return now
}

// Engine implements the public marketplace operations on top of a
// Store. A single mutex gives every operation the serializable
// one-at-a-time execution the data model relies on: no two operations
// interleave their reads and writes, and a failed operation leaves the
// store exactly as it found it.
type Engine struct {
	mtx   sync.Mutex
	store *Store

	transfer Transferer
	clock    Clock

	// Fixed at construction, immutable thereafter.
	admin        string
	feeRecipient string
}

func NewEngine(store *Store, transfer Transferer, clock Clock, admin, feeRecipient string) *Engine {
	if clock == nil {
		clock = &WallClock{}
	}
	return &Engine{
		store:        store,
		transfer:     transfer,
		clock:        clock,
		admin:        admin,
		feeRecipient: feeRecipient,
	}
}

// Admin returns the administrator principal the engine was built with.
func (e *Engine) Admin() string {
	return e.admin
}

// ListData registers a new listing owned by caller and returns its id.
// Ids are handed out strictly sequentially; allocation cannot fail
// once the price check passes, so there are never gaps.
func (e *Engine) ListData(caller, title, description, category string, tags []string, price int64, contentRef string) (uint64, error) {
	if price <= 0 {
		return 0, newError(CodeInvalidPrice, "price must be positive, got %d", price)
	}
	if price > MaxListingPrice {
		return 0, newError(CodeInvalidPrice, "price %d exceeds maximum of %d", price, MaxListingPrice)
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	id := e.store.allocateListingID()
	e.store.listings[id] = &Listing{
		ID:          id,
		Seller:      caller,
		Title:       title,
		Description: description,
		Category:    category,
		Tags:        tags,
		Price:       price,
		ContentRef:  contentRef,
		Active:      true,
		CreatedAt:   e.clock.Now(),
	}
	e.store.sellerStatsFor(caller).DataCount++

	return id, nil
}

// PurchaseData buys a listing for caller. The payment splits into two
// legs, buyer to seller for the net amount and buyer to the fee
// recipient for the fee; both succeed or neither is observable. A
// buyer can purchase a given listing at most once, even after an
// access revoke.
func (e *Engine) PurchaseData(caller string, listingID uint64) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	l, ok := e.store.listing(listingID)
	if !ok {
		return newError(CodeNotFound, "listing %d", listingID)
	}
	if !l.Active {
		return newError(CodeUnavailable, "listing %d is not active", listingID)
	}
	if _, ok := e.store.purchase(caller, listingID); ok {
		return newError(CodeAlreadyExists, "listing %d already purchased", listingID)
	}

	fee := l.Price * int64(e.store.feeRateBps) / bpsDenominator
	sellerAmount := l.Price - fee

	if err := e.paySplit(caller, l.Seller, sellerAmount, fee); err != nil {
		return err
	}

	e.store.putPurchase(&Purchase{
		Buyer:         caller,
		ListingID:     listingID,
		PricePaid:     l.Price,
		AccessGranted: true,
		PurchasedAt:   e.clock.Now(),
	})

	ss := e.store.sellerStatsFor(l.Seller)
	ss.TotalSales++
	ss.TotalRevenue += sellerAmount

	bs := e.store.buyerStatsFor(caller)
	bs.TotalPurchases++
	bs.TotalSpent += l.Price

	return nil
}

// paySplit performs the two transfer legs as one unit. If the fee leg
// fails after the seller leg applied, the seller leg is compensated
// before returning, so a mid-sequence failure cannot leave one leg
// visible.
func (e *Engine) paySplit(buyer, seller string, sellerAmount, fee int64) error {
	if sellerAmount > 0 {
		if err := e.transfer.Transfer(sellerAmount, buyer, seller); err != nil {
			return wrapError(CodeInsufficientFunds, err, "payment of %d to seller failed", sellerAmount)
		}
	}
	if fee > 0 {
		if err := e.transfer.Transfer(fee, buyer, e.feeRecipient); err != nil {
			if sellerAmount > 0 {
				// Unwind the first leg. The seller just received this
				// exact amount, so the compensating transfer cannot
				// fail for lack of funds.
				if cerr := e.transfer.Transfer(sellerAmount, seller, buyer); cerr != nil {
					panic("ledger: compensating transfer failed: " + cerr.Error())
				}
			}
			return wrapError(CodeInsufficientFunds, err, "fee payment of %d failed", fee)
		}
	}
	return nil
}

// UpdateListing replaces price, description and active flag. Title,
// category, content reference, seller, id and creation time are
// immutable for the listing's lifetime. Completed purchases keep the
// price they were made at.
func (e *Engine) UpdateListing(caller string, listingID uint64, newPrice int64, newDescription string, newActive bool) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	l, ok := e.store.listing(listingID)
	if !ok {
		return newError(CodeNotFound, "listing %d", listingID)
	}
	if l.Seller != caller {
		return newError(CodeUnauthorized, "caller does not own listing %d", listingID)
	}
	if newPrice <= 0 {
		return newError(CodeInvalidPrice, "price must be positive, got %d", newPrice)
	}
	if newPrice > MaxListingPrice {
		return newError(CodeInvalidPrice, "price %d exceeds maximum of %d", newPrice, MaxListingPrice)
	}

	l.Price = newPrice
	l.Description = newDescription
	l.Active = newActive
	return nil
}

// DeactivateListing takes a listing off the market. The listing is
// kept so existing purchase records stay valid; the owner may
// reactivate it later through UpdateListing.
func (e *Engine) DeactivateListing(caller string, listingID uint64) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	l, ok := e.store.listing(listingID)
	if !ok {
		return newError(CodeNotFound, "listing %d", listingID)
	}
	if l.Seller != caller {
		return newError(CodeUnauthorized, "caller does not own listing %d", listingID)
	}

	l.Active = false
	return nil
}

// GetDataAccess returns the content reference of a listing the caller
// purchased. A missing purchase record reports Unauthorized, the same
// as a revoked one: "you never purchased" is an authorization failure
// here, not a lookup failure.
func (e *Engine) GetDataAccess(caller string, listingID uint64) (string, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	p, ok := e.store.purchase(caller, listingID)
	if !ok {
		return "", newError(CodeUnauthorized, "no purchase of listing %d", listingID)
	}
	if !p.AccessGranted {
		return "", newError(CodeUnauthorized, "access to listing %d revoked", listingID)
	}

	// Listings are never deleted, so this lookup cannot miss in a
	// well-formed store.
	l, ok := e.store.listing(listingID)
	if !ok {
		return "", newError(CodeNotFound, "listing %d", listingID)
	}

	return l.ContentRef, nil
}

// SetFee changes the marketplace fee rate. Administrator only; the
// rate is capped at 1000 basis points.
func (e *Engine) SetFee(caller string, newFeeBps uint32) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if caller != e.admin {
		return newError(CodeOwnerOnly, "fee changes are restricted to the administrator")
	}
	if newFeeBps > MaxFeeRateBps {
		return newError(CodeInvalidPrice, "fee rate %d exceeds cap of %d bps", newFeeBps, MaxFeeRateBps)
	}

	e.store.feeRateBps = newFeeBps
	return nil
}

// RevokeAccess withdraws a buyer's access to a purchased listing.
// Administrator only. The purchase record itself is kept; no
// operation grants the access back.
func (e *Engine) RevokeAccess(caller, buyer string, listingID uint64) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if caller != e.admin {
		return newError(CodeOwnerOnly, "access revocation is restricted to the administrator")
	}
	p, ok := e.store.purchase(buyer, listingID)
	if !ok {
		return newError(CodeNotFound, "no purchase of listing %d by %s", listingID, buyer)
	}

	p.AccessGranted = false
	return nil
}
