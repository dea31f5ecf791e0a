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
)

// AdminReviewWithdrawRequest 提现审核请求
type AdminReviewWithdrawRequest struct {
	Action     string `json:"action" binding:"required"`
	ReviewNote string `json:"review_note"`
}

// AdminListWithdrawApplies 管理端提现申请列表
func (h *Handler) AdminListWithdrawApplies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	var userID uint
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			userID = uint(parsed)
		}
	}
	applies, total, err := h.WithdrawService.ListApplies(repository.WithdrawListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "提现申请获取失败", err)
		return
	}
	response.SuccessWithPage(c, applies, shared.BuildPagination(page, pageSize, total))
}

// AdminReviewWithdraw 审核提现申请：打款或驳回
func (h *Handler) AdminReviewWithdraw(c *gin.Context) {
	applyID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "提现申请ID无效", nil)
		return
	}
	var req AdminReviewWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	apply, err := h.WithdrawService.Review(service.WithdrawReviewInput{
		ApplyID:    applyID,
		Action:     req.Action,
		ReviewNote: req.ReviewNote,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWithdrawNotFound):
			respondError(c, response.CodeNotFound, "提现申请不存在", nil)
		case errors.Is(err, service.ErrWithdrawActionInvalid):
			respondError(c, response.CodeBadRequest, "审核动作无效", nil)
		case errors.Is(err, service.ErrWithdrawStatusInvalid):
			respondError(c, response.CodeConflict, "提现申请已被处理", nil)
		default:
			respondError(c, response.CodeInternal, "提现审核失败", err)
		}
		return
	}
	response.Success(c, gin.H{"apply": apply})
}
