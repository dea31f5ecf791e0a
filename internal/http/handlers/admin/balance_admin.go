package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminBalanceAdjustRequest 管理员余额调整请求
type AdminBalanceAdjustRequest struct {
	UserID uint         `json:"user_id" binding:"required"`
	Delta  models.Money `json:"delta" binding:"required"`
	Remark string       `json:"remark" binding:"required"`
}

// AdminGetBalanceAccount 查看用户余额账户
func (h *Handler) AdminGetBalanceAccount(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "用户ID无效", nil)
		return
	}
	account, err := h.BalanceService.GetAccount(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "余额账户获取失败", err)
		return
	}
	response.Success(c, gin.H{"account": account})
}

// AdminListBalanceTransactions 管理端余额流水
func (h *Handler) AdminListBalanceTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	var userID, orderID uint
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			userID = uint(parsed)
		}
	}
	if raw := strings.TrimSpace(c.Query("order_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			orderID = uint(parsed)
		}
	}
	txns, total, err := h.BalanceService.ListTransactions(repository.BalanceTxnListFilter{
		Page:      page,
		PageSize:  pageSize,
		UserID:    userID,
		OrderID:   orderID,
		Type:      strings.TrimSpace(c.Query("type")),
		Direction: strings.TrimSpace(c.Query("direction")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "余额流水获取失败", err)
		return
	}
	response.SuccessWithPage(c, txns, shared.BuildPagination(page, pageSize, total))
}

// AdminAdjustBalance 管理员手工调整用户余额
func (h *Handler) AdminAdjustBalance(c *gin.Context) {
	var req AdminBalanceAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	account, txn, err := h.BalanceService.AdminAdjust(service.BalanceAdjustInput{
		UserID:   req.UserID,
		Delta:    req.Delta,
		Currency: h.DefaultCurrency(),
		Remark:   req.Remark,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBalanceInvalidAmount):
			respondError(c, response.CodeBadRequest, "调整金额无效", nil)
		case errors.Is(err, service.ErrBalanceInsufficient):
			respondError(c, response.CodeConflict, "用户可用余额不足", nil)
		default:
			respondError(c, response.CodeInternal, "余额调整失败", err)
		}
		return
	}
	response.Success(c, gin.H{
		"account":     account,
		"transaction": txn,
	})
}
