package public

import (
	"github.com/qingmall/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListShippingMethods 可用配送方式列表
func (h *Handler) ListShippingMethods(c *gin.Context) {
	methods, err := h.ShippingService.ListActive()
	if err != nil {
		respondError(c, response.CodeInternal, "配送方式获取失败", err)
		return
	}
	response.Success(c, gin.H{"shipping_methods": methods})
}
