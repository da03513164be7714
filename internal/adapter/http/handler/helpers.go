package handler

import (
	"artmarket-wallet/internal/adapter/http/middleware"
	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// currentUser writes a 401 and returns false when no user is authenticated.
func currentUser(c *gin.Context) (domain.UserID, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return "", false
	}
	return user, true
}

func paginated[T any](c *gin.Context, page *domain.Page[T]) {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	response.Paginated(c, items, response.PageMeta{
		Page:       page.Page,
		Size:       page.Size,
		Total:      page.Total,
		TotalPages: page.TotalPages(),
	})
}
