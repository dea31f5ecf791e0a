package public

import (
	"strconv"

	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateWithdrawAccountRequest 绑定提现账户请求
type CreateWithdrawAccountRequest struct {
	AccountType string `json:"account_type" binding:"required"`
	AccountNo   string `json:"account_no" binding:"required"`
	HolderName  string `json:"holder_name" binding:"required"`
	BankName    string `json:"bank_name"`
}

// WithdrawApplyRequest 提现申请请求
type WithdrawApplyRequest struct {
	AccountID uint         `json:"account_id" binding:"required"`
	Amount    models.Money `json:"amount" binding:"required"`
	Remark    string       `json:"remark"`
}

// ListWithdrawAccounts 提现账户列表
func (h *Handler) ListWithdrawAccounts(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	accounts, err := h.WithdrawService.ListAccounts(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "提现账户获取失败", err)
		return
	}
	response.Success(c, gin.H{"accounts": accounts})
}

// CreateWithdrawAccount 绑定提现账户
func (h *Handler) CreateWithdrawAccount(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateWithdrawAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	account := &models.WithdrawAccount{
		UserID:      uid,
		AccountType: req.AccountType,
		AccountNo:   req.AccountNo,
		HolderName:  req.HolderName,
		BankName:    req.BankName,
	}
	if err := h.WithdrawService.CreateAccount(account); err != nil {
		respondWithdrawError(c, err)
		return
	}
	response.Success(c, gin.H{"account": account})
}

// DeleteWithdrawAccount 解绑提现账户
func (h *Handler) DeleteWithdrawAccount(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "提现账户ID无效", nil)
		return
	}
	if err := h.WithdrawService.DeleteAccount(uid, uint(id)); err != nil {
		respondWithdrawError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ApplyWithdraw 发起提现申请，冻结对应余额
func (h *Handler) ApplyWithdraw(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req WithdrawApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	apply, err := h.WithdrawService.Apply(service.WithdrawApplyInput{
		UserID:    uid,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Remark:    req.Remark,
	})
	if err != nil {
		respondWithdrawError(c, err)
		return
	}
	response.Success(c, gin.H{"apply": apply})
}

// ListWithdrawApplies 当前用户提现申请列表
func (h *Handler) ListWithdrawApplies(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	filter := repository.WithdrawListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   c.Query("status"),
	}
	applies, total, err := h.WithdrawService.ListApplies(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "提现申请获取失败", err)
		return
	}
	response.SuccessWithPage(c, applies, shared.BuildPagination(page, pageSize, total))
}

// GetWithdrawApply 提现申请详情
func (h *Handler) GetWithdrawApply(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "提现申请ID无效", nil)
		return
	}
	apply, err := h.WithdrawService.GetApplyByUser(uid, uint(id))
	if err != nil {
		respondWithdrawError(c, err)
		return
	}
	response.Success(c, gin.H{"apply": apply})
}
