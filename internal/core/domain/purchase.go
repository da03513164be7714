package domain

import "time"

// ItemKind distinguishes what a PurchaseRecord refers to.
type ItemKind string

const (
	ItemKindArtwork ItemKind = "artwork"
	ItemKindTicket  ItemKind = "ticket"
)

// ArtworkStatusSelling is the only artwork status that accepts purchases.
const ArtworkStatusSelling = "selling"

// PurchaseRecord marks a settled purchase. (BuyerID, ItemID, Kind) is unique.
type PurchaseRecord struct {
	BuyerID   UserID    `json:"buyer_id"`
	ItemID    ItemID    `json:"item_id"`
	Kind      ItemKind  `json:"kind"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Artwork is the catalog projection the purchase flow needs.
type Artwork struct {
	ID        ItemID   `json:"id"`
	ArtistID  UserID   `json:"artist_id"`
	Title     string   `json:"title"`
	Price     int64    `json:"price"`
	Status    string   `json:"status"`
	IsSelling bool     `json:"is_selling"`
	Buyers    []UserID `json:"buyers"`
}

// Sellable reports whether the artwork currently accepts purchases.
func (a *Artwork) Sellable() bool {
	return a.IsSelling && a.Status == ArtworkStatusSelling && a.Price > 0
}

// HasBuyer reports whether user already owns the artwork.
func (a *Artwork) HasBuyer(user UserID) bool {
	for _, b := range a.Buyers {
		if b == user {
			return true
		}
	}
	return false
}

// TicketConfig describes exhibition admission. Capacity 0 means unlimited.
type TicketConfig struct {
	RequiresPayment bool  `json:"requires_payment"`
	Price           int64 `json:"price"`
	Capacity        int   `json:"capacity"`
}

// Paid reports whether a ticket purchase moves money.
func (t TicketConfig) Paid() bool {
	return t.RequiresPayment && t.Price > 0
}

// Exhibition is the catalog projection for ticket sales.
type Exhibition struct {
	ID         ItemID        `json:"id"`
	AuthorID   UserID        `json:"author_id"`
	Name       string        `json:"name"`
	Ticket     *TicketConfig `json:"ticket,omitempty"`
	Registered int           `json:"registered"`
}

// PurchaseReceipt is returned by the purchase flows.
type PurchaseReceipt struct {
	Record            PurchaseRecord `json:"record"`
	BuyerTransaction  *Transaction   `json:"buyer_transaction,omitempty"`
	SellerTransaction *Transaction   `json:"seller_transaction,omitempty"`
	Commission        int64          `json:"commission"`
	AlreadyOwned      bool           `json:"already_owned"`
}
