package service

import (
	"strings"
	"time"

	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"gorm.io/gorm"
)

// AddressService 收货地址服务
type AddressService struct {
	addressRepo repository.AddressRepository
	now         func() time.Time
}

// NewAddressService 创建收货地址服务
func NewAddressService(addressRepo repository.AddressRepository) *AddressService {
	return &AddressService{
		addressRepo: addressRepo,
		now:         time.Now,
	}
}

// AddressInput 地址写入输入
type AddressInput struct {
	ReceiverName  string
	ReceiverPhone string
	Province      string
	City          string
	District      string
	Detail        string
	IsDefault     bool
}

// List 用户地址列表，默认地址排前
func (s *AddressService) List(userID uint) ([]models.Address, error) {
	return s.addressRepo.ListByUser(userID)
}

// Get 查询用户地址
func (s *AddressService) Get(id, userID uint) (*models.Address, error) {
	address, err := s.addressRepo.GetByIDAndUser(id, userID)
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, ErrAddressNotFound
	}
	return address, nil
}

// Create 新增地址。设为默认时同事务清除原默认标记。
func (s *AddressService) Create(userID uint, input AddressInput) (*models.Address, error) {
	if err := validateAddressInput(input); err != nil {
		return nil, err
	}
	now := s.now()
	address := &models.Address{
		UserID:        userID,
		ReceiverName:  strings.TrimSpace(input.ReceiverName),
		ReceiverPhone: strings.TrimSpace(input.ReceiverPhone),
		Province:      strings.TrimSpace(input.Province),
		City:          strings.TrimSpace(input.City),
		District:      strings.TrimSpace(input.District),
		Detail:        strings.TrimSpace(input.Detail),
		IsDefault:     input.IsDefault,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.addressRepo.WithTx(tx)
		if input.IsDefault {
			if err := repo.ClearDefault(userID); err != nil {
				return err
			}
		}
		return repo.Create(address)
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}

// Update 修改地址
func (s *AddressService) Update(id, userID uint, input AddressInput) (*models.Address, error) {
	if err := validateAddressInput(input); err != nil {
		return nil, err
	}
	address, err := s.Get(id, userID)
	if err != nil {
		return nil, err
	}
	address.ReceiverName = strings.TrimSpace(input.ReceiverName)
	address.ReceiverPhone = strings.TrimSpace(input.ReceiverPhone)
	address.Province = strings.TrimSpace(input.Province)
	address.City = strings.TrimSpace(input.City)
	address.District = strings.TrimSpace(input.District)
	address.Detail = strings.TrimSpace(input.Detail)
	address.IsDefault = input.IsDefault
	address.UpdatedAt = s.now()

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.addressRepo.WithTx(tx)
		if input.IsDefault {
			if err := repo.ClearDefault(userID); err != nil {
				return err
			}
		}
		return repo.Update(address)
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}

// Delete 删除地址
func (s *AddressService) Delete(id, userID uint) error {
	address, err := s.Get(id, userID)
	if err != nil {
		return err
	}
	return s.addressRepo.Delete(address.ID)
}

func validateAddressInput(input AddressInput) error {
	if strings.TrimSpace(input.ReceiverName) == "" ||
		strings.TrimSpace(input.ReceiverPhone) == "" ||
		strings.TrimSpace(input.Detail) == "" {
		return ErrAddressInvalid
	}
	return nil
}
