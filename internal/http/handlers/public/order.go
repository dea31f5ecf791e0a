package public

import (
	"strconv"

	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/repository"

	"github.com/gin-gonic/gin"
)

// CancelOrderRequest 取消订单请求
type CancelOrderRequest struct {
	Remark string `json:"remark"`
}

// ListOrders 当前用户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	filter := repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   c.Query("status"),
	}
	orders, total, err := h.OrderService.ListByUser(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "订单列表获取失败", err)
		return
	}
	response.SuccessWithPage(c, orders, shared.BuildPagination(page, pageSize, total))
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	order, err := h.OrderService.GetByIDAndUser(uint(id), uid)
	if err != nil {
		respondOrderActionError(c, err)
		return
	}
	response.Success(c, gin.H{"order": order})
}

// ListOrderLogs 订单操作日志
func (h *Handler) ListOrderLogs(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	if _, err := h.OrderService.GetByIDAndUser(uint(id), uid); err != nil {
		respondOrderActionError(c, err)
		return
	}
	logs, err := h.OrderService.ListLogs(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "订单日志获取失败", err)
		return
	}
	response.Success(c, gin.H{"logs": logs})
}

// CancelOrder 取消待支付订单
func (h *Handler) CancelOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	var req CancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.OrderService.CancelByUser(uint(id), uid, req.Remark)
	if err != nil {
		respondOrderActionError(c, err)
		return
	}
	response.Success(c, gin.H{"order": order})
}

// ConfirmOrderReceipt 确认收货
func (h *Handler) ConfirmOrderReceipt(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	order, err := h.OrderService.ConfirmReceipt(uint(id), uid)
	if err != nil {
		respondOrderActionError(c, err)
		return
	}
	response.Success(c, gin.H{"order": order})
}
