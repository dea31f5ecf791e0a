package public

import (
	"errors"
	"strconv"

	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePaymentRequest 发起支付请求
type CreatePaymentRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Method  string `json:"method" binding:"required"`
	Channel string `json:"channel"`
}

// CreatePayment 对待支付订单发起支付
func (h *Handler) CreatePayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	result, err := h.PaymentService.CreatePayment(service.CreatePaymentInput{
		OrderID:  req.OrderID,
		UserID:   uid,
		Method:   req.Method,
		Channel:  req.Channel,
		ClientIP: c.ClientIP(),
		Context:  c.Request.Context(),
	})
	if err != nil {
		respondPaymentCreateError(c, err)
		return
	}
	response.Success(c, result)
}

// GetPayment 支付单详情
func (h *Handler) GetPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "支付单ID无效", nil)
		return
	}
	pay, err := h.PaymentService.GetByIDAndUser(uint(id), uid)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			respondError(c, response.CodeNotFound, "支付单不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "支付单获取失败", err)
		return
	}
	response.Success(c, gin.H{"payment": pay})
}

// ListOrderPayments 订单的支付单列表
func (h *Handler) ListOrderPayments(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	if _, err := h.OrderService.GetByIDAndUser(uint(orderID), uid); err != nil {
		respondOrderActionError(c, err)
		return
	}
	payments, err := h.PaymentService.ListByOrder(uint(orderID))
	if err != nil {
		respondError(c, response.CodeInternal, "支付单列表获取失败", err)
		return
	}
	response.Success(c, gin.H{"payments": payments})
}
