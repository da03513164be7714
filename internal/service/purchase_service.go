package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PurchaseServiceImpl implements ports.PurchaseService.
type PurchaseServiceImpl struct {
	catalog    ports.CatalogRepository
	purchases  ports.PurchaseRepository
	wallets    ports.WalletWriter
	ledger     ports.LedgerWriter
	atomic     ports.AtomicRunner
	publisher  ports.EventPublisher
	commission Commission
	platform   domain.UserID
	metrics    *metrics.Settlement
	tracer     trace.Tracer
	log        zerolog.Logger
}

// NewPurchaseService creates a new PurchaseServiceImpl. An empty platform user
// keeps the commission off-ledger.
func NewPurchaseService(
	catalog ports.CatalogRepository,
	purchases ports.PurchaseRepository,
	wallets ports.WalletWriter,
	ledger ports.LedgerWriter,
	atomic ports.AtomicRunner,
	publisher ports.EventPublisher,
	commission Commission,
	platform domain.UserID,
	m *metrics.Settlement,
	log zerolog.Logger,
) *PurchaseServiceImpl {
	return &PurchaseServiceImpl{
		catalog:    catalog,
		purchases:  purchases,
		wallets:    wallets,
		ledger:     ledger,
		atomic:     atomic,
		publisher:  publisher,
		commission: commission,
		platform:   platform,
		metrics:    m,
		tracer:     otel.Tracer("artmarket-wallet/purchase"),
		log:        log,
	}
}

// sale is one priced transfer from buyer to seller.
type sale struct {
	buyer       domain.UserID
	seller      domain.UserID
	item        domain.ItemID
	kind        domain.ItemKind
	price       int64
	description string
}

type saleResult struct {
	buyerTx  *domain.Transaction
	sellerTx *domain.Transaction
	fee      int64
}

type walletDelta struct {
	walletID domain.WalletID
	delta    int64
}

// PurchaseArtwork debits the buyer, credits the artist net of commission and
// records the buyer as an owner. The purchase record is the final arbiter.
func (s *PurchaseServiceImpl) PurchaseArtwork(ctx context.Context, buyer domain.UserID, artworkID domain.ItemID) (*domain.PurchaseReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "purchase.artwork")
	defer span.End()
	span.SetAttributes(
		attribute.String("purchase.buyer_id", string(buyer)),
		attribute.String("purchase.artwork_id", string(artworkID)),
	)

	art, err := s.catalog.GetArtwork(ctx, artworkID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if art == nil {
		return nil, apperror.ErrNotFound("Artwork")
	}
	if art.ArtistID == buyer {
		return nil, apperror.ErrSelfPurchase()
	}
	owned, err := s.purchases.Exists(ctx, buyer, artworkID, domain.ItemKindArtwork)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if owned || art.HasBuyer(buyer) {
		return nil, apperror.ErrDuplicatePurchase()
	}
	if !art.Sellable() {
		return nil, apperror.ErrItemNotForSale()
	}

	var (
		res    *saleResult
		record *domain.PurchaseRecord
	)
	err = s.atomic.Run(ctx, "purchase.artwork", func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.catalog.GetArtworkTx(ctx, tx, artworkID)
		if err != nil {
			return fmt.Errorf("read artwork: %w", err)
		}
		if current == nil {
			return apperror.ErrNotFound("Artwork")
		}
		if !current.Sellable() {
			return apperror.ErrItemNotForSale()
		}

		record = &domain.PurchaseRecord{
			BuyerID:   buyer,
			ItemID:    artworkID,
			Kind:      domain.ItemKindArtwork,
			Price:     current.Price,
			CreatedAt: time.Now(),
		}
		if err := s.insertRecord(ctx, tx, record); err != nil {
			return err
		}

		res, err = s.transfer(ctx, tx, sale{
			buyer:       buyer,
			seller:      current.ArtistID,
			item:        artworkID,
			kind:        domain.ItemKindArtwork,
			price:       current.Price,
			description: "Artwork: " + current.Title,
		})
		if err != nil {
			return err
		}

		if err := s.catalog.AddArtworkBuyer(ctx, tx, artworkID, buyer); err != nil {
			return fmt.Errorf("add artwork buyer: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "artwork purchase failed")
		return nil, err
	}

	s.completed(ctx, record, res)
	return &domain.PurchaseReceipt{
		Record:            *record,
		BuyerTransaction:  res.buyerTx,
		SellerTransaction: res.sellerTx,
		Commission:        res.fee,
	}, nil
}

// PurchaseTicket registers buyer for an exhibition, charging the ticket price
// when admission is paid. Free admission is idempotent.
func (s *PurchaseServiceImpl) PurchaseTicket(ctx context.Context, exhibitionID domain.ItemID, buyer domain.UserID) (*domain.PurchaseReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "purchase.ticket")
	defer span.End()
	span.SetAttributes(
		attribute.String("purchase.buyer_id", string(buyer)),
		attribute.String("purchase.exhibition_id", string(exhibitionID)),
	)

	ex, err := s.catalog.GetExhibition(ctx, exhibitionID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if ex == nil {
		return nil, apperror.ErrNotFound("Exhibition")
	}
	if ex.Ticket == nil {
		return nil, apperror.ErrItemNotForSale()
	}
	if ex.AuthorID == buyer {
		return nil, apperror.ErrSelfPurchase()
	}

	if !ex.Ticket.Paid() {
		return s.registerFree(ctx, ex, buyer)
	}

	registered, err := s.catalog.IsRegistered(ctx, exhibitionID, buyer)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if registered {
		return nil, apperror.ErrDuplicatePurchase()
	}

	var (
		res    *saleResult
		record *domain.PurchaseRecord
	)
	err = s.atomic.Run(ctx, "purchase.ticket", func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.catalog.GetExhibitionTx(ctx, tx, exhibitionID)
		if err != nil {
			return fmt.Errorf("read exhibition: %w", err)
		}
		if current == nil || current.Ticket == nil || !current.Ticket.Paid() {
			return apperror.ErrItemNotForSale()
		}

		if err := s.register(ctx, tx, exhibitionID, buyer); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return apperror.ErrDuplicatePurchase()
			}
			return err
		}

		record = &domain.PurchaseRecord{
			BuyerID:   buyer,
			ItemID:    exhibitionID,
			Kind:      domain.ItemKindTicket,
			Price:     current.Ticket.Price,
			CreatedAt: time.Now(),
		}
		if err := s.insertRecord(ctx, tx, record); err != nil {
			return err
		}

		res, err = s.transfer(ctx, tx, sale{
			buyer:       buyer,
			seller:      current.AuthorID,
			item:        exhibitionID,
			kind:        domain.ItemKindTicket,
			price:       current.Ticket.Price,
			description: "Ticket: " + current.Name,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticket purchase failed")
		return nil, err
	}

	s.completed(ctx, record, res)
	return &domain.PurchaseReceipt{
		Record:            *record,
		BuyerTransaction:  res.buyerTx,
		SellerTransaction: res.sellerTx,
		Commission:        res.fee,
	}, nil
}

func (s *PurchaseServiceImpl) registerFree(ctx context.Context, ex *domain.Exhibition, buyer domain.UserID) (*domain.PurchaseReceipt, error) {
	record := domain.PurchaseRecord{
		BuyerID:   buyer,
		ItemID:    ex.ID,
		Kind:      domain.ItemKindTicket,
		Price:     0,
		CreatedAt: time.Now(),
	}

	registered, err := s.catalog.IsRegistered(ctx, ex.ID, buyer)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if registered {
		return &domain.PurchaseReceipt{Record: record, AlreadyOwned: true}, nil
	}

	alreadyOwned := false
	err = s.atomic.Run(ctx, "purchase.ticket_free", func(ctx context.Context, tx pgx.Tx) error {
		alreadyOwned = false
		err := s.register(ctx, tx, ex.ID, buyer)
		if errors.Is(err, domain.ErrDuplicate) {
			alreadyOwned = true
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.purchases.Insert(ctx, tx, &record); err != nil && !errors.Is(err, domain.ErrDuplicate) {
			return fmt.Errorf("insert purchase record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadyOwned {
		s.log.Info().Str("buyer_id", string(buyer)).Str("exhibition_id", string(ex.ID)).Msg("free ticket registered")
	}
	return &domain.PurchaseReceipt{Record: record, AlreadyOwned: alreadyOwned}, nil
}

func (s *PurchaseServiceImpl) register(ctx context.Context, tx pgx.Tx, exhibitionID domain.ItemID, buyer domain.UserID) error {
	err := s.catalog.Register(ctx, tx, exhibitionID, buyer)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrCapacityReached):
		return apperror.ErrCapacityReached()
	case errors.Is(err, domain.ErrDuplicate):
		return err
	default:
		return fmt.Errorf("register visitor: %w", err)
	}
}

func (s *PurchaseServiceImpl) insertRecord(ctx context.Context, tx pgx.Tx, record *domain.PurchaseRecord) error {
	err := s.purchases.Insert(ctx, tx, record)
	if errors.Is(err, domain.ErrDuplicate) {
		return apperror.ErrDuplicatePurchase()
	}
	if err != nil {
		return fmt.Errorf("insert purchase record: %w", err)
	}
	return nil
}

// transfer moves price from buyer to seller and the commission to the platform
// wallet. Balances are changed in WalletID order.
func (s *PurchaseServiceImpl) transfer(ctx context.Context, tx pgx.Tx, sl sale) (*saleResult, error) {
	sellerShare, fee := s.commission.Split(sl.price)

	buyerW, err := s.wallets.Ensure(ctx, tx, sl.buyer)
	if err != nil {
		return nil, err
	}
	sellerW, err := s.wallets.Ensure(ctx, tx, sl.seller)
	if err != nil {
		return nil, err
	}
	deltas := []walletDelta{
		{walletID: buyerW.ID, delta: -sl.price},
		{walletID: sellerW.ID, delta: sellerShare},
	}

	var platformW *domain.Wallet
	if s.platform != "" && fee > 0 {
		platformW, err = s.wallets.Ensure(ctx, tx, s.platform)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, walletDelta{walletID: platformW.ID, delta: fee})
	}

	sort.SliceStable(deltas, func(i, j int) bool { return deltas[i].walletID < deltas[j].walletID })
	for _, d := range deltas {
		if d.delta == 0 {
			continue
		}
		if _, err := s.wallets.Apply(ctx, tx, d.walletID, d.delta); err != nil {
			return nil, err
		}
	}

	ref := string(sl.item)
	res := &saleResult{fee: fee}
	res.buyerTx, err = s.ledger.Record(ctx, tx, domain.LedgerEntry{
		WalletID:    buyerW.ID,
		Amount:      sl.price,
		Type:        domain.TransactionTypePayment,
		Status:      domain.TransactionStatusPaid,
		ReferenceID: &ref,
		Description: "Purchase " + sl.description,
	})
	if err != nil {
		return nil, err
	}
	if sellerShare > 0 {
		res.sellerTx, err = s.ledger.Record(ctx, tx, domain.LedgerEntry{
			WalletID:    sellerW.ID,
			Amount:      sellerShare,
			Type:        domain.TransactionTypeSale,
			Status:      domain.TransactionStatusPaid,
			ReferenceID: &ref,
			Description: "Sale " + sl.description,
		})
		if err != nil {
			return nil, err
		}
	}
	if platformW != nil {
		if _, err := s.ledger.Record(ctx, tx, domain.LedgerEntry{
			WalletID:    platformW.ID,
			Amount:      fee,
			Type:        domain.TransactionTypeCommission,
			Status:      domain.TransactionStatusPaid,
			ReferenceID: &ref,
			Description: "Commission " + sl.description,
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *PurchaseServiceImpl) completed(ctx context.Context, record *domain.PurchaseRecord, res *saleResult) {
	s.metrics.AddMoved(string(domain.TransactionTypePayment), record.Price)
	s.metrics.AddMoved(string(domain.TransactionTypeCommission), res.fee)
	s.log.Info().
		Str("buyer_id", string(record.BuyerID)).
		Str("item_id", string(record.ItemID)).
		Str("kind", string(record.Kind)).
		Int64("price", record.Price).
		Int64("commission", res.fee).
		Msg("purchase settled")

	item := record.ItemID
	var walletID domain.WalletID
	if res.buyerTx != nil {
		walletID = res.buyerTx.WalletID
	}
	publishAfterCommit(ctx, s.publisher, &domain.Event{
		Type:       domain.EventPurchaseCompleted,
		OccurredAt: record.CreatedAt,
		UserID:     record.BuyerID,
		WalletID:   walletID,
		Amount:     record.Price,
		ItemID:     &item,
		ItemKind:   record.Kind,
	}, s.log)
}

// HasPurchased reports whether buyer owns the item.
func (s *PurchaseServiceImpl) HasPurchased(ctx context.Context, buyer domain.UserID, item domain.ItemID, kind domain.ItemKind) (bool, error) {
	owned, err := s.purchases.Exists(ctx, buyer, item, kind)
	if err != nil {
		return false, apperror.ErrDatabaseError(err)
	}
	if owned || kind != domain.ItemKindTicket {
		return owned, nil
	}
	registered, err := s.catalog.IsRegistered(ctx, item, buyer)
	if err != nil {
		return false, apperror.ErrDatabaseError(err)
	}
	return registered, nil
}

// HasAccess reports whether user may download the artwork: its artist or a buyer.
func (s *PurchaseServiceImpl) HasAccess(ctx context.Context, user domain.UserID, artworkID domain.ItemID) (bool, error) {
	art, err := s.catalog.GetArtwork(ctx, artworkID)
	if err != nil {
		return false, apperror.ErrDatabaseError(err)
	}
	if art == nil {
		return false, apperror.ErrNotFound("Artwork")
	}
	if art.ArtistID == user || art.HasBuyer(user) {
		return true, nil
	}
	return s.HasPurchased(ctx, user, artworkID, domain.ItemKindArtwork)
}
