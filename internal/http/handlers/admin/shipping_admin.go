package admin

import (
	"errors"

	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminShippingMethodRequest 配送方式请求
type AdminShippingMethodRequest struct {
	Name      string `json:"name" binding:"required"`
	Fee       string `json:"fee" binding:"required"`
	IsActive  *bool  `json:"is_active"`
	SortOrder int    `json:"sort_order"`
}

func (r AdminShippingMethodRequest) toInput() (service.ShippingMethodInput, error) {
	fee, err := decimal.NewFromString(r.Fee)
	if err != nil {
		return service.ShippingMethodInput{}, err
	}
	input := service.ShippingMethodInput{
		Name:      r.Name,
		Fee:       fee,
		IsActive:  true,
		SortOrder: r.SortOrder,
	}
	if r.IsActive != nil {
		input.IsActive = *r.IsActive
	}
	return input, nil
}

// AdminListShippingMethods 全部配送方式（含停用）
func (h *Handler) AdminListShippingMethods(c *gin.Context) {
	methods, err := h.ShippingService.ListAll()
	if err != nil {
		respondError(c, response.CodeInternal, "配送方式获取失败", err)
		return
	}
	response.Success(c, gin.H{"shipping_methods": methods})
}

// AdminCreateShippingMethod 新增配送方式
func (h *Handler) AdminCreateShippingMethod(c *gin.Context) {
	var req AdminShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "运费金额格式无效", nil)
		return
	}
	method, err := h.ShippingService.Create(input)
	if err != nil {
		respondAdminShippingError(c, err)
		return
	}
	response.Success(c, gin.H{"shipping_method": method})
}

// AdminUpdateShippingMethod 更新配送方式
func (h *Handler) AdminUpdateShippingMethod(c *gin.Context) {
	methodID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "配送方式ID无效", nil)
		return
	}
	var req AdminShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "运费金额格式无效", nil)
		return
	}
	method, err := h.ShippingService.Update(methodID, input)
	if err != nil {
		respondAdminShippingError(c, err)
		return
	}
	response.Success(c, gin.H{"shipping_method": method})
}

// AdminDeleteShippingMethod 删除配送方式
func (h *Handler) AdminDeleteShippingMethod(c *gin.Context) {
	methodID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "配送方式ID无效", nil)
		return
	}
	if err := h.ShippingService.Delete(methodID); err != nil {
		respondAdminShippingError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func respondAdminShippingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrShippingMethodNotFound):
		respondError(c, response.CodeNotFound, "配送方式不存在", nil)
	default:
		respondError(c, response.CodeInternal, "配送方式操作失败", err)
	}
}
