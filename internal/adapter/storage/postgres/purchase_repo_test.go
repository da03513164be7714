package postgres

import (
	"context"
	"testing"
	"time"

	"artmarket-wallet/internal/core/domain"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := &domain.PurchaseRecord{
		BuyerID:   "buyer-1",
		ItemID:    "art-1",
		Kind:      domain.ItemKindArtwork,
		Price:     12345,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchases .+ ON CONFLICT \\(buyer_id, item_id, kind\\) DO NOTHING").
		WithArgs(rec.BuyerID, rec.ItemID, rec.Kind, rec.Price, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO purchases").
		WithArgs(rec.BuyerID, rec.ItemID, rec.Kind, rec.Price, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	repo := NewPurchaseRepo(mock)
	assert.NoError(t, repo.Insert(context.Background(), tx, rec))
	assert.ErrorIs(t, repo.Insert(context.Background(), tx, rec), domain.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM purchases").
		WithArgs(domain.UserID("buyer-1"), domain.ItemID("art-1"), domain.ItemKindArtwork).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewPurchaseRepo(mock).Exists(context.Background(), "buyer-1", "art-1", domain.ItemKindArtwork)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_GetArtwork(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM artworks WHERE id").
		WithArgs(domain.ItemID("art-1")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "artist_id", "title", "price", "status", "is_selling", "buyers"}).
			AddRow(domain.ItemID("art-1"), domain.UserID("artist-1"), "Sunrise", int64(12345), "selling", true, []string{"buyer-1", "buyer-2"}))

	a, err := NewCatalogRepo(mock).GetArtwork(context.Background(), "art-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.Sellable())
	assert.True(t, a.HasBuyer("buyer-2"))
	assert.False(t, a.HasBuyer("buyer-3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_AddArtworkBuyer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE artworks SET buyers = array_append\\(buyers, \\$2\\)").
		WithArgs(domain.ItemID("art-1"), domain.UserID("buyer-1")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, NewCatalogRepo(mock).AddArtworkBuyer(context.Background(), tx, "art-1", "buyer-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func exhibitionCols() []string {
	return []string{"id", "author_id", "name", "ticket_enabled", "requires_payment", "ticket_price", "capacity", "registered"}
}

func TestCatalogRepo_GetExhibition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCatalogRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM exhibitions WHERE id").
		WithArgs(domain.ItemID("expo-1")).
		WillReturnRows(pgxmock.NewRows(exhibitionCols()).
			AddRow(domain.ItemID("expo-1"), domain.UserID("author-1"), "Spring Salon", true, true, int64(5000), 100, 42))
	mock.ExpectQuery("SELECT .+ FROM exhibitions WHERE id").
		WithArgs(domain.ItemID("expo-2")).
		WillReturnRows(pgxmock.NewRows(exhibitionCols()).
			AddRow(domain.ItemID("expo-2"), domain.UserID("author-1"), "Closed", false, false, int64(0), 0, 0))

	e, err := repo.GetExhibition(context.Background(), "expo-1")
	require.NoError(t, err)
	require.NotNil(t, e.Ticket)
	assert.True(t, e.Ticket.Paid())
	assert.Equal(t, 100, e.Ticket.Capacity)
	assert.Equal(t, 42, e.Registered)

	noTickets, err := repo.GetExhibition(context.Background(), "expo-2")
	require.NoError(t, err)
	assert.Nil(t, noTickets.Ticket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_Register(t *testing.T) {
	tests := []struct {
		name     string
		inserted int64
		claimed  int64
		wantErr  error
	}{
		{"seat claimed", 1, 1, nil},
		{"already registered", 0, 0, domain.ErrDuplicate},
		{"sold out", 1, 0, domain.ErrCapacityReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO exhibition_visitors").
				WithArgs(domain.ItemID("expo-1"), domain.UserID("visitor-1")).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.inserted))
			if tt.inserted > 0 {
				mock.ExpectExec("UPDATE exhibitions SET registered = registered \\+ 1").
					WithArgs(domain.ItemID("expo-1")).
					WillReturnResult(pgxmock.NewResult("UPDATE", tt.claimed))
			}

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			err = NewCatalogRepo(mock).Register(context.Background(), tx, "expo-1", "visitor-1")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
