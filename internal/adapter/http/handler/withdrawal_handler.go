package handler

import (
	"artmarket-wallet/internal/adapter/http/dto"
	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawalHandler handles payout requests and the admin decisions on them.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Request handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wd, err := h.withdrawalSvc.RequestWithdrawal(c.Request.Context(), user, req.Amount, req.Bank())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, wd)
}

// ListMine handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) ListMine(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	page, size := q.Normalize()

	list, err := h.withdrawalSvc.ListMine(c.Request.Context(), user, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, list)
}

// ListAll handles GET /api/v1/admin/withdrawals.
func (h *WithdrawalHandler) ListAll(c *gin.Context) {
	var q dto.WithdrawalListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	page, size := q.Normalize()

	list, err := h.withdrawalSvc.ListAll(c.Request.Context(), q.StatusFilter(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, list)
}

// Approve handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	var p dto.IDParam
	if err := c.ShouldBindUri(&p); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wd, err := h.withdrawalSvc.Approve(c.Request.Context(), domain.WithdrawalID(p.ID), admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wd)
}

// Reject handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	var p dto.IDParam
	if err := c.ShouldBindUri(&p); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var req dto.RejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wd, err := h.withdrawalSvc.Reject(c.Request.Context(), domain.WithdrawalID(p.ID), admin, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wd)
}
