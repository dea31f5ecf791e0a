package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/repository"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminCreateRefundRequest 创建退款请求
type AdminCreateRefundRequest struct {
	PaymentID uint   `json:"payment_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Reason    string `json:"reason"`
}

// AdminCompleteRefundRequest 退款完结请求
type AdminCompleteRefundRequest struct {
	ProviderRef string `json:"provider_ref"`
}

// AdminRejectRefundRequest 退款驳回请求
type AdminRejectRefundRequest struct {
	Reason string `json:"reason"`
}

// AdminListPayments 管理端支付单列表
func (h *Handler) AdminListPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	var orderID uint
	if raw := strings.TrimSpace(c.Query("order_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			orderID = uint(parsed)
		}
	}
	payments, total, err := h.PaymentService.ListAdmin(repository.PaymentListFilter{
		Page:     page,
		PageSize: pageSize,
		OrderID:  orderID,
		Method:   strings.TrimSpace(c.Query("method")),
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "支付单列表获取失败", err)
		return
	}
	response.SuccessWithPage(c, payments, shared.BuildPagination(page, pageSize, total))
}

// AdminSyncPayment 主动向渠道对账单笔支付
func (h *Handler) AdminSyncPayment(c *gin.Context) {
	paymentID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "支付单ID无效", nil)
		return
	}
	if err := h.PaymentService.SyncPaymentStatus(c.Request.Context(), paymentID); err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			respondError(c, response.CodeNotFound, "支付单不存在", nil)
		case errors.Is(err, service.ErrPaymentMethodInvalid):
			respondError(c, response.CodeBadRequest, "支付渠道不可用", nil)
		default:
			respondError(c, response.CodeInternal, "支付状态同步失败", err)
		}
		return
	}
	pay, err := h.PaymentService.GetByID(paymentID)
	if err != nil {
		respondError(c, response.CodeInternal, "支付单获取失败", err)
		return
	}
	response.Success(c, gin.H{"payment": pay})
}

// AdminCreateRefund 管理端发起退款
func (h *Handler) AdminCreateRefund(c *gin.Context) {
	var req AdminCreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(c, response.CodeBadRequest, "退款金额格式无效", nil)
		return
	}
	refund, err := h.RefundService.Create(service.CreateRefundInput{
		PaymentID: req.PaymentID,
		Amount:    amount,
		Reason:    req.Reason,
		Context:   c.Request.Context(),
	})
	if err != nil {
		respondAdminRefundError(c, err)
		return
	}
	response.Success(c, gin.H{"refund": refund})
}

// AdminListRefunds 管理端退款单列表
func (h *Handler) AdminListRefunds(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	var paymentID, orderID uint
	if raw := strings.TrimSpace(c.Query("payment_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			paymentID = uint(parsed)
		}
	}
	if raw := strings.TrimSpace(c.Query("order_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			orderID = uint(parsed)
		}
	}
	refunds, total, err := h.RefundService.List(repository.RefundListFilter{
		Page:      page,
		PageSize:  pageSize,
		PaymentID: paymentID,
		OrderID:   orderID,
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "退款单列表获取失败", err)
		return
	}
	response.SuccessWithPage(c, refunds, shared.BuildPagination(page, pageSize, total))
}

// AdminCompleteRefund 确认异步退款已到账，完结退款单
func (h *Handler) AdminCompleteRefund(c *gin.Context) {
	refundID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "退款单ID无效", nil)
		return
	}
	var req AdminCompleteRefundRequest
	_ = c.ShouldBindJSON(&req)

	refund, err := h.RefundService.Complete(refundID, req.ProviderRef)
	if err != nil {
		respondAdminRefundError(c, err)
		return
	}
	response.Success(c, gin.H{"refund": refund})
}

// AdminRejectRefund 驳回处理中的退款单
func (h *Handler) AdminRejectRefund(c *gin.Context) {
	refundID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "退款单ID无效", nil)
		return
	}
	var req AdminRejectRefundRequest
	_ = c.ShouldBindJSON(&req)

	refund, err := h.RefundService.Reject(refundID, req.Reason)
	if err != nil {
		respondAdminRefundError(c, err)
		return
	}
	response.Success(c, gin.H{"refund": refund})
}

func respondAdminRefundError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		respondError(c, response.CodeNotFound, "支付单不存在", nil)
	case errors.Is(err, service.ErrRefundNotFound):
		respondError(c, response.CodeNotFound, "退款单不存在", nil)
	case errors.Is(err, service.ErrRefundInvalidAmount):
		respondError(c, response.CodeBadRequest, "退款金额无效", nil)
	case errors.Is(err, service.ErrRefundExceeded):
		respondError(c, response.CodeConflict, "退款金额超出可退上限", nil)
	case errors.Is(err, service.ErrRefundNotAllowed):
		respondError(c, response.CodeBadRequest, "该支付单不支持退款", nil)
	case errors.Is(err, service.ErrRefundStatusInvalid):
		respondError(c, response.CodeConflict, "退款单状态不允许该操作", nil)
	case errors.Is(err, service.ErrPaymentMethodInvalid):
		respondError(c, response.CodeBadRequest, "支付渠道不可用", nil)
	default:
		respondError(c, response.CodeInternal, "退款操作失败", err)
	}
}
