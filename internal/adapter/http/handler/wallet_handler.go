package handler

import (
	"artmarket-wallet/internal/adapter/http/dto"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves the wallet, ledger history and statistics endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, ledgerSvc: ledgerSvc}
}

// GetWallet handles GET /api/v1/wallet. The wallet is created on first access.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetOrCreateWallet(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var q dto.TransactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	filter, err := q.Filter()
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.ledgerSvc.History(c.Request.Context(), user, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, page)
}

// Statistics handles GET /api/v1/wallet/statistics.
func (h *WalletHandler) Statistics(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var q dto.StatisticsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	params, err := q.Params()
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.ledgerSvc.Statistics(c.Request.Context(), user, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// Reconcile handles GET /api/v1/wallet/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	rec, err := h.walletSvc.Reconcile(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// AllTransactions handles GET /api/v1/admin/transactions.
func (h *WalletHandler) AllTransactions(c *gin.Context) {
	var q dto.TransactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	filter, err := q.Filter()
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.ledgerSvc.AllTransactions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, page)
}
