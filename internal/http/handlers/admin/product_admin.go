package admin

import (
	"errors"
	"strconv"

	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminProductRequest 商品创建/更新请求
type AdminProductRequest struct {
	Name        string       `json:"name" binding:"required"`
	ImageURL    string       `json:"image_url"`
	PriceAmount models.Money `json:"price_amount"`
	Stock       *int         `json:"stock"`
	IsActive    *bool        `json:"is_active"`
	SortOrder   int          `json:"sort_order"`
}

// AdminRestockRequest 补货请求
type AdminRestockRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// AdminListProducts 管理端商品列表（含下架商品）
func (h *Handler) AdminListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	products, total, err := h.ProductService.List(repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "商品列表获取失败", err)
		return
	}
	response.SuccessWithPage(c, products, shared.BuildPagination(page, pageSize, total))
}

// AdminCreateProduct 创建商品
func (h *Handler) AdminCreateProduct(c *gin.Context) {
	var req AdminProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	product := &models.Product{
		Name:        req.Name,
		ImageURL:    req.ImageURL,
		PriceAmount: req.PriceAmount,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if err := h.ProductService.Create(product); err != nil {
		respondError(c, response.CodeInternal, "商品创建失败", err)
		return
	}
	response.Success(c, gin.H{"product": product})
}

// AdminUpdateProduct 更新商品
func (h *Handler) AdminUpdateProduct(c *gin.Context) {
	productID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "商品ID无效", nil)
		return
	}
	var req AdminProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	product, err := h.ProductService.GetByID(productID)
	if err != nil {
		respondAdminProductError(c, err)
		return
	}
	product.Name = req.Name
	product.ImageURL = req.ImageURL
	product.PriceAmount = req.PriceAmount
	product.SortOrder = req.SortOrder
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	// 库存不走整体更新，补货见 AdminRestockProduct
	if err := h.ProductService.Update(product); err != nil {
		respondAdminProductError(c, err)
		return
	}
	response.Success(c, gin.H{"product": product})
}

// AdminRestockProduct 补充商品库存
func (h *Handler) AdminRestockProduct(c *gin.Context) {
	productID, err := parseIDParam(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "商品ID无效", nil)
		return
	}
	var req AdminRestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	if err := h.ProductService.Restock(productID, req.Quantity); err != nil {
		switch {
		case errors.Is(err, service.ErrCartInvalidQuantity):
			respondError(c, response.CodeBadRequest, "补货数量无效", nil)
		default:
			respondAdminProductError(c, err)
		}
		return
	}
	product, err := h.ProductService.GetByID(productID)
	if err != nil {
		respondAdminProductError(c, err)
		return
	}
	response.Success(c, gin.H{"product": product})
}

func respondAdminProductError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		respondError(c, response.CodeNotFound, "商品不存在", nil)
	default:
		respondError(c, response.CodeInternal, "商品操作失败", err)
	}
}
