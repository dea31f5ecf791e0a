package public

import (
	"errors"
	"strconv"

	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// AddCartItemRequest 添加购物车请求
type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// UpdateCartItemRequest 修改购物车数量请求
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// GetCart 购物车汇总
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	summary, err := h.CartService.GetSummary(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "购物车获取失败", err)
		return
	}
	response.Success(c, gin.H{
		"items":    summary.Items,
		"subtotal": summary.Subtotal,
	})
}

// AddCartItem 添加商品到购物车
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	item, err := h.CartService.AddItem(uid, req.ProductID, req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, gin.H{"item": item})
}

// UpdateCartItem 修改购物车条目数量
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "购物车条目ID无效", nil)
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	item, err := h.CartService.UpdateQuantity(uid, uint(itemID), req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, gin.H{"item": item})
}

// RemoveCartItem 删除购物车条目
func (h *Handler) RemoveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "购物车条目ID无效", nil)
		return
	}
	if err := h.CartService.RemoveItem(uid, uint(itemID)); err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": true})
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.CartService.Clear(uid); err != nil {
		respondError(c, response.CodeInternal, "购物车清空失败", err)
		return
	}
	response.Success(c, gin.H{"cleared": true})
}

func respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		respondError(c, response.CodeNotFound, "商品不存在或已下架", nil)
	case errors.Is(err, service.ErrProductOutOfStock):
		respondError(c, response.CodeConflict, "商品库存不足", nil)
	case errors.Is(err, service.ErrCartInvalidQuantity):
		respondError(c, response.CodeBadRequest, "购买数量无效", nil)
	case errors.Is(err, service.ErrCartItemNotFound):
		respondError(c, response.CodeNotFound, "购物车条目不存在", nil)
	default:
		respondError(c, response.CodeInternal, "购物车操作失败", err)
	}
}
