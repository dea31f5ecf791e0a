package public

import (
	"errors"
	"strconv"

	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// AddressRequest 收货地址请求
type AddressRequest struct {
	ReceiverName  string `json:"receiver_name" binding:"required"`
	ReceiverPhone string `json:"receiver_phone" binding:"required"`
	Province      string `json:"province" binding:"required"`
	City          string `json:"city" binding:"required"`
	District      string `json:"district"`
	Detail        string `json:"detail" binding:"required"`
	IsDefault     bool   `json:"is_default"`
}

func (r AddressRequest) toInput() service.AddressInput {
	return service.AddressInput{
		ReceiverName:  r.ReceiverName,
		ReceiverPhone: r.ReceiverPhone,
		Province:      r.Province,
		City:          r.City,
		District:      r.District,
		Detail:        r.Detail,
		IsDefault:     r.IsDefault,
	}
}

// ListAddresses 地址列表
func (h *Handler) ListAddresses(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	addresses, err := h.AddressService.List(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "地址列表获取失败", err)
		return
	}
	response.Success(c, gin.H{"addresses": addresses})
}

// CreateAddress 新增地址
func (h *Handler) CreateAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	address, err := h.AddressService.Create(uid, req.toInput())
	if err != nil {
		respondAddressError(c, err)
		return
	}
	response.Success(c, gin.H{"address": address})
}

// UpdateAddress 更新地址
func (h *Handler) UpdateAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "地址ID无效", nil)
		return
	}
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	address, err := h.AddressService.Update(uint(id), uid, req.toInput())
	if err != nil {
		respondAddressError(c, err)
		return
	}
	response.Success(c, gin.H{"address": address})
}

// DeleteAddress 删除地址
func (h *Handler) DeleteAddress(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "地址ID无效", nil)
		return
	}
	if err := h.AddressService.Delete(uint(id), uid); err != nil {
		respondAddressError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func respondAddressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAddressNotFound):
		respondError(c, response.CodeNotFound, "收货地址不存在", nil)
	case errors.Is(err, service.ErrAddressInvalid):
		respondError(c, response.CodeBadRequest, "收货地址信息不完整", nil)
	default:
		respondError(c, response.CodeInternal, "地址操作失败", err)
	}
}
