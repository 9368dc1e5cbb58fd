// internal/ledger/query.go
package ledger

// Read-only projections over the store. Results are copies; callers
// cannot mutate ledger state through them.

// GetListing returns a copy of the listing, or false if the id was
// never assigned.
func (e *Engine) GetListing(listingID uint64) (Listing, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	l, ok := e.store.listing(listingID)
	if !ok {
		return Listing{}, false
	}
	return *l, true
}

// GetPurchase returns a copy of the purchase record for the pair, or
// false if the buyer never purchased the listing.
func (e *Engine) GetPurchase(buyer string, listingID uint64) (Purchase, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	p, ok := e.store.purchase(buyer, listingID)
	if !ok {
		return Purchase{}, false
	}
	return *p, true
}

// GetSellerStats never fails: an unknown seller reports the
// zero-valued aggregate.
func (e *Engine) GetSellerStats(seller string) SellerStats {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if st, ok := e.store.sellerStats[seller]; ok {
		return *st
	}
	return SellerStats{Seller: seller}
}

// GetBuyerStats never fails: an unknown buyer reports the zero-valued
// aggregate.
func (e *Engine) GetBuyerStats(buyer string) BuyerStats {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if st, ok := e.store.buyerStats[buyer]; ok {
		return *st
	}
	return BuyerStats{Buyer: buyer}
}

// HasAccess reports whether the buyer currently holds granted access
// to the listing. False both for "never purchased" and "revoked".
func (e *Engine) HasAccess(buyer string, listingID uint64) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	p, ok := e.store.purchase(buyer, listingID)
	if !ok {
		return false
	}
	return p.AccessGranted
}

// FeeRateBps returns the current marketplace fee rate.
func (e *Engine) FeeRateBps() uint32 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.store.feeRateBps
}

// NextListingID returns the id the next successful listing will get.
func (e *Engine) NextListingID() uint64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.store.nextListingID
}

// Snapshot copies the full ledger state for persistence. The caller
// gets independent slices it may hand off without holding the engine
// lock.
func (e *Engine) Snapshot() ([]Listing, []Purchase, []SellerStats, []BuyerStats, uint32, uint64) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	listings := make([]Listing, 0, len(e.store.listings))
	for _, l := range e.store.listings {
		listings = append(listings, *l)
	}
	purchases := make([]Purchase, 0, len(e.store.purchases))
	for _, p := range e.store.purchases {
		purchases = append(purchases, *p)
	}
	sellers := make([]SellerStats, 0, len(e.store.sellerStats))
	for _, st := range e.store.sellerStats {
		sellers = append(sellers, *st)
	}
	buyers := make([]BuyerStats, 0, len(e.store.buyerStats))
	for _, st := range e.store.buyerStats {
		buyers = append(buyers, *st)
	}

	return listings, purchases, sellers, buyers, e.store.feeRateBps, e.store.nextListingID
}
