package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminOrderListItem 管理端订单列表返回
type AdminOrderListItem struct {
	models.Order
	UserEmail       string `json:"user_email,omitempty"`
	UserDisplayName string `json:"user_display_name,omitempty"`
}

// AdminOrderRemarkRequest 管理端订单操作备注
type AdminOrderRemarkRequest struct {
	Remark string `json:"remark"`
}

// AdminListOrders 管理端订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	var userID uint
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			userID = uint(parsed)
		}
	}
	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "开始时间格式无效", err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "结束时间格式无效", err)
		return
	}

	orders, total, err := h.OrderService.ListAdmin(repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		UserID:      userID,
		Status:      strings.TrimSpace(c.Query("status")),
		PayStatus:   strings.TrimSpace(c.Query("pay_status")),
		OrderNo:     strings.TrimSpace(c.Query("order_no")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "订单列表获取失败", err)
		return
	}

	items, err := h.attachOrderUsers(orders)
	if err != nil {
		respondError(c, response.CodeInternal, "订单列表获取失败", err)
		return
	}
	response.SuccessWithPage(c, items, shared.BuildPagination(page, pageSize, total))
}

// AdminGetOrder 管理端订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	order, err := h.OrderService.GetByID(orderID)
	if err != nil {
		respondAdminOrderError(c, err)
		return
	}
	payments, err := h.PaymentService.ListByOrder(order.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "订单详情获取失败", err)
		return
	}
	logs, err := h.OrderService.ListLogs(order.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "订单详情获取失败", err)
		return
	}
	response.Success(c, gin.H{
		"order":    order,
		"payments": payments,
		"logs":     logs,
	})
}

// AdminShipOrder 管理端发货
func (h *Handler) AdminShipOrder(c *gin.Context) {
	orderID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	var req AdminOrderRemarkRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.OrderService.Ship(orderID, req.Remark)
	if err != nil {
		respondAdminOrderError(c, err)
		return
	}
	response.Success(c, gin.H{"order": order})
}

// AdminCloseOrder 管理端关闭待支付订单
func (h *Handler) AdminCloseOrder(c *gin.Context) {
	orderID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	var req AdminOrderRemarkRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.OrderService.CloseByAdmin(orderID, req.Remark)
	if err != nil {
		respondAdminOrderError(c, err)
		return
	}
	response.Success(c, gin.H{"order": order})
}

func (h *Handler) attachOrderUsers(orders []models.Order) ([]AdminOrderListItem, error) {
	userIDs := make([]uint, 0, len(orders))
	seen := map[uint]struct{}{}
	for _, order := range orders {
		if order.UserID == 0 {
			continue
		}
		if _, ok := seen[order.UserID]; ok {
			continue
		}
		seen[order.UserID] = struct{}{}
		userIDs = append(userIDs, order.UserID)
	}
	userMap := map[uint]models.User{}
	if len(userIDs) > 0 {
		users, err := h.UserRepo.ListByIDs(userIDs)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			userMap[user.ID] = user
		}
	}
	items := make([]AdminOrderListItem, 0, len(orders))
	for _, order := range orders {
		item := AdminOrderListItem{Order: order}
		if user, ok := userMap[order.UserID]; ok {
			item.UserEmail = user.Email
			item.UserDisplayName = user.DisplayName
		}
		items = append(items, item)
	}
	return items, nil
}

func respondAdminOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(c, response.CodeNotFound, "订单不存在", nil)
	case errors.Is(err, service.ErrOrderStatusInvalid):
		respondError(c, response.CodeBadRequest, "订单状态不允许该操作", nil)
	case errors.Is(err, service.ErrOrderStatusConflict):
		respondError(c, response.CodeConflict, "订单状态已变更，请刷新后重试", nil)
	default:
		respondError(c, response.CodeInternal, "订单操作失败", err)
	}
}

func parseIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func parseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, errors.New("unsupported time format: " + raw)
}
