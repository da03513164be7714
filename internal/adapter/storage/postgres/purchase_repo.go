package postgres

import (
	"context"
	"errors"
	"fmt"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PurchaseRepo implements ports.PurchaseRepository.
type PurchaseRepo struct {
	pool Pool
}

// NewPurchaseRepo creates a new PurchaseRepo.
func NewPurchaseRepo(pool Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

// Exists reports whether buyer already owns the item.
func (r *PurchaseRepo) Exists(ctx context.Context, buyer domain.UserID, item domain.ItemID, kind domain.ItemKind) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM purchases WHERE buyer_id = $1 AND item_id = $2 AND kind = $3)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, buyer, item, kind).Scan(&exists); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// Insert records a settled purchase. The primary key is the final arbiter
// against double purchases.
func (r *PurchaseRepo) Insert(ctx context.Context, tx pgx.Tx, rec *domain.PurchaseRecord) error {
	query := `INSERT INTO purchases (buyer_id, item_id, kind, price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (buyer_id, item_id, kind) DO NOTHING`
	tag, err := tx.Exec(ctx, query, rec.BuyerID, rec.ItemID, rec.Kind, rec.Price, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// CatalogRepo implements ports.CatalogRepository over the artworks and
// exhibitions projection tables.
type CatalogRepo struct {
	pool Pool
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(pool Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

const (
	artworkColumns    = `id, artist_id, title, price, status, is_selling, buyers`
	exhibitionColumns = `id, author_id, name, ticket_enabled, requires_payment, ticket_price, capacity, registered`
)

func (r *CatalogRepo) GetArtwork(ctx context.Context, id domain.ItemID) (*domain.Artwork, error) {
	a, err := scanArtwork(r.pool.QueryRow(ctx, `SELECT `+artworkColumns+` FROM artworks WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get artwork: %w", err)
	}
	return a, nil
}

func (r *CatalogRepo) GetArtworkTx(ctx context.Context, tx pgx.Tx, id domain.ItemID) (*domain.Artwork, error) {
	a, err := scanArtwork(tx.QueryRow(ctx, `SELECT `+artworkColumns+` FROM artworks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get artwork in tx: %w", err)
	}
	return a, nil
}

// AddArtworkBuyer appends buyer to the buyer set unless already present.
func (r *CatalogRepo) AddArtworkBuyer(ctx context.Context, tx pgx.Tx, id domain.ItemID, buyer domain.UserID) error {
	query := `UPDATE artworks SET buyers = array_append(buyers, $2)
		WHERE id = $1 AND NOT ($2 = ANY(buyers))`
	if _, err := tx.Exec(ctx, query, id, buyer); err != nil {
		return fmt.Errorf("add artwork buyer: %w", err)
	}
	return nil
}

func (r *CatalogRepo) GetExhibition(ctx context.Context, id domain.ItemID) (*domain.Exhibition, error) {
	e, err := scanExhibition(r.pool.QueryRow(ctx, `SELECT `+exhibitionColumns+` FROM exhibitions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get exhibition: %w", err)
	}
	return e, nil
}

func (r *CatalogRepo) GetExhibitionTx(ctx context.Context, tx pgx.Tx, id domain.ItemID) (*domain.Exhibition, error) {
	e, err := scanExhibition(tx.QueryRow(ctx, `SELECT `+exhibitionColumns+` FROM exhibitions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get exhibition in tx: %w", err)
	}
	return e, nil
}

func (r *CatalogRepo) IsRegistered(ctx context.Context, exhibition domain.ItemID, user domain.UserID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM exhibition_visitors WHERE exhibition_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, exhibition, user).Scan(&ok); err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return ok, nil
}

// Register inserts the visitor row, then claims a seat. A full exhibition
// leaves the visitor row behind; the caller's rollback removes it.
func (r *CatalogRepo) Register(ctx context.Context, tx pgx.Tx, exhibition domain.ItemID, user domain.UserID) error {
	insert := `INSERT INTO exhibition_visitors (exhibition_id, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (exhibition_id, user_id) DO NOTHING`
	tag, err := tx.Exec(ctx, insert, exhibition, user)
	if err != nil {
		return fmt.Errorf("insert exhibition visitor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}

	claim := `UPDATE exhibitions SET registered = registered + 1
		WHERE id = $1 AND (capacity = 0 OR registered < capacity)`
	tag, err = tx.Exec(ctx, claim, exhibition)
	if err != nil {
		return fmt.Errorf("claim exhibition seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCapacityReached
	}
	return nil
}

func scanArtwork(row pgx.Row) (*domain.Artwork, error) {
	a := &domain.Artwork{}
	var buyers []string
	err := row.Scan(&a.ID, &a.ArtistID, &a.Title, &a.Price, &a.Status, &a.IsSelling, &buyers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Buyers = make([]domain.UserID, len(buyers))
	for i, b := range buyers {
		a.Buyers[i] = domain.UserID(b)
	}
	return a, nil
}

func scanExhibition(row pgx.Row) (*domain.Exhibition, error) {
	e := &domain.Exhibition{}
	var (
		enabled bool
		ticket  domain.TicketConfig
	)
	err := row.Scan(&e.ID, &e.AuthorID, &e.Name, &enabled,
		&ticket.RequiresPayment, &ticket.Price, &ticket.Capacity, &e.Registered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if enabled {
		e.Ticket = &ticket
	}
	return e, nil
}
