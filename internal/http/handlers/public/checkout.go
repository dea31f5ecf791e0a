package public

import (
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutRequest 下单请求
type CheckoutRequest struct {
	FlowType         string       `json:"flow_type"`
	CartItemIDs      []uint       `json:"cart_item_ids" binding:"required"`
	AddressID        uint         `json:"address_id" binding:"required"`
	ShippingMethodID uint         `json:"shipping_method_id" binding:"required"`
	CouponCode       string       `json:"coupon_code"`
	BalanceAmount    models.Money `json:"balance_amount"` // 请求使用的余额金额
	Remark           string       `json:"remark"`
}

// Checkout 提交结算，生成订单
func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	result, err := h.CheckoutService.Submit(service.CheckoutInput{
		UserID:           uid,
		FlowType:         req.FlowType,
		CartItemIDs:      req.CartItemIDs,
		AddressID:        req.AddressID,
		ShippingMethodID: req.ShippingMethodID,
		CouponCode:       req.CouponCode,
		BalanceAmount:    req.BalanceAmount,
		ClientIP:         c.ClientIP(),
		Remark:           req.Remark,
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}
