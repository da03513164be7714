package ports

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

import (
	"context"
	"time"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	// CanonicalString joins fields as key=value pairs sorted by key.
	CanonicalString(fields map[string]string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID domain.UserID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID domain.UserID
	Role   string
}

// RoleAdmin is the role allowed to decide withdrawals and read every ledger.
const RoleAdmin = "admin"

// IsAdmin reports whether the claims carry the admin role.
func (c *TokenClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// --- Building blocks shared by the money-moving services ---

// AtomicRunner executes fn as one all-or-nothing unit with bounded retries.
type AtomicRunner interface {
	Run(ctx context.Context, operation string, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// WalletWriter mutates balances inside the caller's atomic unit.
type WalletWriter interface {
	Ensure(ctx context.Context, tx pgx.Tx, owner domain.UserID) (*domain.Wallet, error)
	Apply(ctx context.Context, tx pgx.Tx, walletID domain.WalletID, delta int64) (*domain.BalanceChange, error)
}

// LedgerWriter appends and transitions ledger rows inside the caller's atomic unit.
type LedgerWriter interface {
	Record(ctx context.Context, tx pgx.Tx, entry domain.LedgerEntry) (*domain.Transaction, error)
	Transition(ctx context.Context, tx pgx.Tx, id domain.TransactionID, from, to domain.TransactionStatus) (*domain.Transaction, error)
}

// --- Service Ports (Business Logic) ---

// WalletService is the read side of the Wallet Store.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, owner domain.UserID) (*domain.Wallet, error)
	Reconcile(ctx context.Context, owner domain.UserID) (*domain.Reconciliation, error)
}

// LedgerService answers history and statistics queries.
type LedgerService interface {
	History(ctx context.Context, owner domain.UserID, filter domain.TransactionFilter) (*domain.Page[domain.Transaction], error)
	Statistics(ctx context.Context, owner domain.UserID, params StatisticsParams) (*domain.WalletStatistics, error)
	AllTransactions(ctx context.Context, filter domain.TransactionFilter) (*domain.Page[domain.Transaction], error)
}

// StatisticsParams holds the optional statistics filters.
type StatisticsParams struct {
	GroupBy domain.GroupBy
	From    *time.Time
	To      *time.Time
	Type    *domain.TransactionType
	Status  *domain.TransactionStatus
}

// PaymentService creates gateway orders and settles them exactly once.
type PaymentService interface {
	CreateOrder(ctx context.Context, user domain.UserID, amount int64, description string) (*domain.PaymentOrder, error)
	Verify(ctx context.Context, user domain.UserID, code domain.OrderCode, reportedStatus string) (*domain.PaymentOrder, error)
	HandleWebhook(ctx context.Context, rawPayload []byte, signature string) (*domain.WebhookResult, error)
	ListOrders(ctx context.Context, user domain.UserID, page, size int) (*domain.Page[domain.PaymentOrder], error)
}

// PurchaseService runs the artwork and ticket buy flows.
type PurchaseService interface {
	PurchaseArtwork(ctx context.Context, buyer domain.UserID, artwork domain.ItemID) (*domain.PurchaseReceipt, error)
	PurchaseTicket(ctx context.Context, exhibition domain.ItemID, buyer domain.UserID) (*domain.PurchaseReceipt, error)
	HasPurchased(ctx context.Context, buyer domain.UserID, item domain.ItemID, kind domain.ItemKind) (bool, error)
	HasAccess(ctx context.Context, user domain.UserID, artwork domain.ItemID) (bool, error)
}

// WithdrawalService runs the hold and admin decision workflow.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, user domain.UserID, amount int64, bank domain.BankDetails) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, id domain.WithdrawalID, admin domain.UserID) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, id domain.WithdrawalID, admin domain.UserID, reason string) (*domain.WithdrawalRequest, error)
	ListMine(ctx context.Context, user domain.UserID, page, size int) (*domain.Page[domain.WithdrawalRequest], error)
	ListAll(ctx context.Context, status *domain.WithdrawalStatus, page, size int) (*domain.Page[domain.WithdrawalRequest], error)
}
