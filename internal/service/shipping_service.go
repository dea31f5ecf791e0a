package service

import (
	"strings"
	"time"

	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"github.com/shopspring/decimal"
)

// ShippingService 配送方式服务
type ShippingService struct {
	shippingRepo repository.ShippingRepository
	now          func() time.Time
}

// NewShippingService 创建配送方式服务
func NewShippingService(shippingRepo repository.ShippingRepository) *ShippingService {
	return &ShippingService{
		shippingRepo: shippingRepo,
		now:          time.Now,
	}
}

// ShippingMethodInput 配送方式写入输入
type ShippingMethodInput struct {
	Name      string
	Fee       decimal.Decimal
	IsActive  bool
	SortOrder int
}

// ListActive 买家侧可选配送方式
func (s *ShippingService) ListActive() ([]models.ShippingMethod, error) {
	return s.shippingRepo.ListActive()
}

// ListAll 管理端配送方式列表
func (s *ShippingService) ListAll() ([]models.ShippingMethod, error) {
	return s.shippingRepo.ListAll()
}

// Get 查询配送方式
func (s *ShippingService) Get(id uint) (*models.ShippingMethod, error) {
	method, err := s.shippingRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, ErrShippingMethodNotFound
	}
	return method, nil
}

// Create 新增配送方式
func (s *ShippingService) Create(input ShippingMethodInput) (*models.ShippingMethod, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.Fee.IsNegative() {
		return nil, ErrShippingMethodNotFound
	}
	now := s.now()
	method := &models.ShippingMethod{
		Name:      name,
		Fee:       models.NewMoneyFromDecimal(input.Fee.Round(2)),
		IsActive:  input.IsActive,
		SortOrder: input.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.shippingRepo.Create(method); err != nil {
		return nil, err
	}
	return method, nil
}

// Update 修改配送方式
func (s *ShippingService) Update(id uint, input ShippingMethodInput) (*models.ShippingMethod, error) {
	method, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		method.Name = name
	}
	if !input.Fee.IsNegative() {
		method.Fee = models.NewMoneyFromDecimal(input.Fee.Round(2))
	}
	method.IsActive = input.IsActive
	method.SortOrder = input.SortOrder
	method.UpdatedAt = s.now()
	if err := s.shippingRepo.Update(method); err != nil {
		return nil, err
	}
	return method, nil
}

// Delete 删除配送方式
func (s *ShippingService) Delete(id uint) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.shippingRepo.Delete(id)
}
