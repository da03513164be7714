package handler

import (
	"artmarket-wallet/internal/adapter/http/dto"
	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// PurchaseHandler handles artwork and ticket purchases.
type PurchaseHandler struct {
	purchaseSvc ports.PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(purchaseSvc ports.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseSvc: purchaseSvc}
}

// BuyArtwork handles POST /api/v1/purchases/artworks/:id.
// A repeat purchase by an owner returns 200 with already_owned set.
func (h *PurchaseHandler) BuyArtwork(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var p dto.IDParam
	if err := c.ShouldBindUri(&p); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	receipt, err := h.purchaseSvc.PurchaseArtwork(c.Request.Context(), user, domain.ItemID(p.ID))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReceipt(c, receipt)
}

// BuyTicket handles POST /api/v1/purchases/exhibitions/:id/tickets.
func (h *PurchaseHandler) BuyTicket(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var p dto.IDParam
	if err := c.ShouldBindUri(&p); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	receipt, err := h.purchaseSvc.PurchaseTicket(c.Request.Context(), domain.ItemID(p.ID), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReceipt(c, receipt)
}

// ArtworkAccess handles GET /api/v1/purchases/artworks/:id/access.
func (h *PurchaseHandler) ArtworkAccess(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var p dto.IDParam
	if err := c.ShouldBindUri(&p); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	has, err := h.purchaseSvc.HasAccess(c.Request.Context(), user, domain.ItemID(p.ID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.AccessResponse{ArtworkID: p.ID, HasAccess: has})
}

func respondReceipt(c *gin.Context, receipt *domain.PurchaseReceipt) {
	if receipt.AlreadyOwned {
		response.OK(c, receipt)
		return
	}
	response.Created(c, receipt)
}
