package public

import (
	"strconv"

	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetBalance 当前用户余额账户
func (h *Handler) GetBalance(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	account, err := h.BalanceService.GetAccount(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "余额账户获取失败", err)
		return
	}
	response.Success(c, gin.H{"account": account})
}

// ListBalanceTransactions 当前用户余额流水
func (h *Handler) ListBalanceTransactions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	filter := repository.BalanceTxnListFilter{
		Page:      page,
		PageSize:  pageSize,
		UserID:    uid,
		Type:      c.Query("type"),
		Direction: c.Query("direction"),
	}
	txns, total, err := h.BalanceService.ListTransactions(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "余额流水获取失败", err)
		return
	}
	response.SuccessWithPage(c, txns, shared.BuildPagination(page, pageSize, total))
}
