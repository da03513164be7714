package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports/mocks"
	"artmarket-wallet/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const platformUser domain.UserID = "platform"

func sellingArtwork(id domain.ItemID, artist domain.UserID, price int64) domain.Artwork {
	return domain.Artwork{
		ID:        id,
		ArtistID:  artist,
		Title:     "Study in Blue",
		Price:     price,
		Status:    domain.ArtworkStatusSelling,
		IsSelling: true,
	}
}

// ==================== PurchaseArtwork Tests ====================

func TestPurchaseService_PurchaseArtwork_Success(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.1", platformUser)
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 12345))
	h.fund(t, "buyer", 20000)

	receipt, err := svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), receipt.Record.Price)
	assert.Equal(t, int64(1235), receipt.Commission)
	require.NotNil(t, receipt.BuyerTransaction)
	assert.Equal(t, int64(-12345), receipt.BuyerTransaction.Amount)
	assert.Equal(t, domain.TransactionTypePayment, receipt.BuyerTransaction.Type)
	require.NotNil(t, receipt.SellerTransaction)
	assert.Equal(t, int64(11110), receipt.SellerTransaction.Amount)

	assert.Equal(t, int64(20000-12345), h.balance(t, "buyer"))
	assert.Equal(t, int64(11110), h.balance(t, "artist"))
	assert.Equal(t, int64(1235), h.balance(t, platformUser))

	owned, err := svc.HasPurchased(context.Background(), "buyer", "art-1", domain.ItemKindArtwork)
	require.NoError(t, err)
	assert.True(t, owned)

	art, err := h.store.Catalog().GetArtwork(context.Background(), "art-1")
	require.NoError(t, err)
	assert.True(t, art.HasBuyer("buyer"))

	h.assertConsistent(t, "buyer", "artist", platformUser)
}

func TestPurchaseService_PurchaseArtwork_NoPlatformWallet(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.1", "")
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 1000))
	h.fund(t, "buyer", 1000)

	receipt, err := svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), receipt.Commission)
	assert.Equal(t, int64(0), h.balance(t, "buyer"))
	assert.Equal(t, int64(900), h.balance(t, "artist"))
	h.assertConsistent(t, "buyer", "artist")
}

func TestPurchaseService_PurchaseArtwork_InsufficientFunds(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.1", platformUser)
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 5000))
	h.fund(t, "buyer", 4999)

	_, err := svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))

	assert.Equal(t, int64(4999), h.balance(t, "buyer"))
	owned, err := svc.HasPurchased(context.Background(), "buyer", "art-1", domain.ItemKindArtwork)
	require.NoError(t, err)
	assert.False(t, owned)
	art, err := h.store.Catalog().GetArtwork(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Empty(t, art.Buyers)
	h.assertConsistent(t, "buyer")
}

func TestPurchaseService_PurchaseArtwork_Rejections(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.1", platformUser)
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 1000))
	notSelling := sellingArtwork("art-2", "artist", 1000)
	notSelling.IsSelling = false
	h.store.PutArtwork(notSelling)
	owned := sellingArtwork("art-3", "artist", 1000)
	owned.Buyers = []domain.UserID{"buyer"}
	h.store.PutArtwork(owned)
	h.fund(t, "buyer", 10000)

	tests := []struct {
		name    string
		buyer   domain.UserID
		artwork domain.ItemID
		code    string
	}{
		{"unknown artwork", "buyer", "missing", apperror.CodeNotFound},
		{"own artwork", "artist", "art-1", apperror.CodeSelfPurchase},
		{"not for sale", "buyer", "art-2", apperror.CodeItemNotForSale},
		{"already a buyer", "buyer", "art-3", apperror.CodeDuplicatePurchase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PurchaseArtwork(context.Background(), tt.buyer, tt.artwork)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Equal(t, int64(10000), h.balance(t, "buyer"))
}

func TestPurchaseService_PurchaseArtwork_Twice(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0", "")
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 1000))
	h.fund(t, "buyer", 5000)

	_, err := svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
	require.NoError(t, err)
	_, err = svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicatePurchase))
	assert.Equal(t, int64(4000), h.balance(t, "buyer"))
}

func TestPurchaseService_PurchaseArtwork_ConcurrentSameBuyer(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.05", platformUser)
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 1000))
	h.fund(t, "buyer", 100000)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperror.HasCode(err, apperror.CodeDuplicatePurchase):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, dupes)
	assert.Equal(t, int64(99000), h.balance(t, "buyer"))
	h.assertConsistent(t, "buyer", "artist", platformUser)
}

func TestPurchaseService_PurchaseArtwork_ConcurrentSpendNeverOverdraws(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.1", platformUser)
	const artworks = 8
	for i := 0; i < artworks; i++ {
		h.store.PutArtwork(sellingArtwork(domain.ItemID(fmt.Sprintf("art-%d", i)), "artist", 1000))
	}
	// Enough for five of the eight.
	h.fund(t, "buyer", 5500)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < artworks; i++ {
		wg.Add(1)
		go func(id domain.ItemID) {
			defer wg.Done()
			_, err := svc.PurchaseArtwork(context.Background(), "buyer", id)
			if err != nil {
				assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds), "got %v", err)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}(domain.ItemID(fmt.Sprintf("art-%d", i)))
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	assert.Equal(t, int64(500), h.balance(t, "buyer"))
	assert.Equal(t, int64(5*900), h.balance(t, "artist"))
	assert.Equal(t, int64(5*100), h.balance(t, platformUser))
	h.assertConsistent(t, "buyer", "artist", platformUser)
}

func TestPurchaseService_PurchaseArtwork_PublishesEvent(t *testing.T) {
	h := newHarness(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	svc := NewPurchaseService(
		h.store.Catalog(), h.store.Purchases(), h.wallets, h.ledger, h.atomic,
		publisher, NewCommission(decimal.Zero), "", nil, zerolog.Nop(),
	)
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 1000))
	h.fund(t, "buyer", 1000)

	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e domain.Event) error {
			assert.Equal(t, domain.EventPurchaseCompleted, e.Type)
			assert.Equal(t, domain.UserID("buyer"), e.UserID)
			assert.Equal(t, domain.ItemKindArtwork, e.ItemKind)
			require.NotNil(t, e.ItemID)
			assert.Equal(t, domain.ItemID("art-1"), *e.ItemID)
			return nil
		})

	_, err := svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
	require.NoError(t, err)
}

// ==================== PurchaseTicket Tests ====================

func paidExhibition(id domain.ItemID, price int64, capacity int) domain.Exhibition {
	return domain.Exhibition{
		ID:       id,
		AuthorID: "curator",
		Name:     "Spring Salon",
		Ticket:   &domain.TicketConfig{RequiresPayment: true, Price: price, Capacity: capacity},
	}
}

func TestPurchaseService_PurchaseTicket_Paid(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.1", platformUser)
	h.store.PutExhibition(paidExhibition("ex-1", 2000, 0))
	h.fund(t, "visitor", 5000)

	receipt, err := svc.PurchaseTicket(context.Background(), "ex-1", "visitor")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemKindTicket, receipt.Record.Kind)
	assert.Equal(t, int64(200), receipt.Commission)

	assert.Equal(t, int64(3000), h.balance(t, "visitor"))
	assert.Equal(t, int64(1800), h.balance(t, "curator"))
	assert.Equal(t, int64(200), h.balance(t, platformUser))

	owned, err := svc.HasPurchased(context.Background(), "visitor", "ex-1", domain.ItemKindTicket)
	require.NoError(t, err)
	assert.True(t, owned)

	_, err = svc.PurchaseTicket(context.Background(), "ex-1", "visitor")
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicatePurchase))
	assert.Equal(t, int64(3000), h.balance(t, "visitor"))
	h.assertConsistent(t, "visitor", "curator", platformUser)
}

func TestPurchaseService_PurchaseTicket_Capacity(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0", "")
	h.store.PutExhibition(paidExhibition("ex-1", 100, 2))
	for _, u := range []domain.UserID{"v1", "v2", "v3"} {
		h.fund(t, u, 1000)
	}

	_, err := svc.PurchaseTicket(context.Background(), "ex-1", "v1")
	require.NoError(t, err)
	_, err = svc.PurchaseTicket(context.Background(), "ex-1", "v2")
	require.NoError(t, err)

	_, err = svc.PurchaseTicket(context.Background(), "ex-1", "v3")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeItemNotForSale))
	assert.Contains(t, err.Error(), "No tickets left")
	assert.Equal(t, int64(1000), h.balance(t, "v3"))

	ex, err := h.store.Catalog().GetExhibition(context.Background(), "ex-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ex.Registered)
}

func TestPurchaseService_PurchaseTicket_ConcurrentCapacity(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0", "")
	h.store.PutExhibition(paidExhibition("ex-1", 100, 3))
	const visitors = 10
	for i := 0; i < visitors; i++ {
		h.fund(t, domain.UserID(fmt.Sprintf("v%d", i)), 100)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for i := 0; i < visitors; i++ {
		wg.Add(1)
		go func(user domain.UserID) {
			defer wg.Done()
			if _, err := svc.PurchaseTicket(context.Background(), "ex-1", user); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}(domain.UserID(fmt.Sprintf("v%d", i)))
	}
	wg.Wait()

	assert.Equal(t, 3, sold)
	assert.Equal(t, int64(300), h.balance(t, "curator"))
}

func TestPurchaseService_PurchaseTicket_Free(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0.1", platformUser)
	h.store.PutExhibition(domain.Exhibition{
		ID:       "ex-free",
		AuthorID: "curator",
		Name:     "Open Studio",
		Ticket:   &domain.TicketConfig{RequiresPayment: false, Capacity: 1},
	})

	first, err := svc.PurchaseTicket(context.Background(), "ex-free", "visitor")
	require.NoError(t, err)
	assert.False(t, first.AlreadyOwned)
	assert.Equal(t, int64(0), first.Record.Price)

	second, err := svc.PurchaseTicket(context.Background(), "ex-free", "visitor")
	require.NoError(t, err)
	assert.True(t, second.AlreadyOwned)

	_, err = svc.PurchaseTicket(context.Background(), "ex-free", "other")
	assert.True(t, apperror.HasCode(err, apperror.CodeItemNotForSale))

	// Free admission never touches wallets.
	w, err := h.store.Wallets().GetByOwner(context.Background(), "visitor")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestPurchaseService_PurchaseTicket_Rejections(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0", "")
	h.store.PutExhibition(paidExhibition("ex-1", 100, 0))
	h.store.PutExhibition(domain.Exhibition{ID: "ex-closed", AuthorID: "curator", Name: "Archive"})

	_, err := svc.PurchaseTicket(context.Background(), "missing", "visitor")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	_, err = svc.PurchaseTicket(context.Background(), "ex-closed", "visitor")
	assert.True(t, apperror.HasCode(err, apperror.CodeItemNotForSale))

	_, err = svc.PurchaseTicket(context.Background(), "ex-1", "curator")
	assert.True(t, apperror.HasCode(err, apperror.CodeSelfPurchase))

	_, err = svc.PurchaseTicket(context.Background(), "ex-1", "broke")
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
	registered, err := h.store.Catalog().IsRegistered(context.Background(), "ex-1", "broke")
	require.NoError(t, err)
	assert.False(t, registered)
}

// ==================== Access Tests ====================

func TestPurchaseService_HasAccess(t *testing.T) {
	h := newHarness(t)
	svc := h.purchaseService("0", "")
	h.store.PutArtwork(sellingArtwork("art-1", "artist", 500))
	h.fund(t, "buyer", 500)
	_, err := svc.PurchaseArtwork(context.Background(), "buyer", "art-1")
	require.NoError(t, err)

	tests := []struct {
		user     domain.UserID
		expected bool
	}{
		{"artist", true},
		{"buyer", true},
		{"stranger", false},
	}
	for _, tt := range tests {
		ok, err := svc.HasAccess(context.Background(), tt.user, "art-1")
		require.NoError(t, err)
		assert.Equal(t, tt.expected, ok, tt.user)
	}

	_, err = svc.HasAccess(context.Background(), "buyer", "missing")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}
