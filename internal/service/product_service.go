package service

import (
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"
)

// ProductService 商品服务
type ProductService struct {
	productRepo repository.ProductRepository
}

// NewProductService 创建商品服务
func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

// GetByID 获取商品
func (s *ProductService) GetByID(id uint) (*models.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// List 分页查询商品
func (s *ProductService) List(filter repository.ProductListFilter) ([]models.Product, int64, error) {
	return s.productRepo.List(filter)
}

// Create 创建商品
func (s *ProductService) Create(product *models.Product) error {
	return s.productRepo.Create(product)
}

// Update 更新商品
func (s *ProductService) Update(product *models.Product) error {
	if product == nil || product.ID == 0 {
		return ErrProductNotFound
	}
	return s.productRepo.Update(product)
}

// Restock 补充库存。经条件自增执行，不读改写。
func (s *ProductService) Restock(id uint, quantity int) error {
	if quantity <= 0 {
		return ErrCartInvalidQuantity
	}
	rows, err := s.productRepo.IncrementStock(id, quantity)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}
