package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/qingmall/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupProductRepositoryTest(t *testing.T) (*GormProductRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:product_repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewProductRepository(db), db
}

func TestDecrementStockGuardsRemaining(t *testing.T) {
	repo, db := setupProductRepositoryTest(t)
	now := time.Now()
	product := &models.Product{
		Name:        "库存商品",
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Stock:       1,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	// 超量扣减一行都不动
	rows, err := repo.DecrementStock(product.ID, 2)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("rows = %d, want 0 for oversell", rows)
	}

	// 最后一件只能被扣走一次
	rows, err = repo.DecrementStock(product.ID, 1)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
	rows, err = repo.DecrementStock(product.ID, 1)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("rows = %d, want 0 after sold out", rows)
	}

	var fresh models.Product
	if err := db.First(&fresh, product.ID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	if fresh.Stock != 0 {
		t.Fatalf("stock = %d, want 0", fresh.Stock)
	}

	// 回补后可再次扣减
	if _, err := repo.IncrementStock(product.ID, 3); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	rows, err = repo.DecrementStock(product.ID, 3)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1 after restock", rows)
	}
}

func TestCreatePersistsInactiveFlag(t *testing.T) {
	repo, db := setupProductRepositoryTest(t)
	now := time.Now()
	product := &models.Product{
		Name:        "下架商品",
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(5)),
		Stock:       3,
		IsActive:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	var fresh models.Product
	if err := db.First(&fresh, product.ID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	if fresh.IsActive {
		t.Fatalf("is_active = true, want false as written")
	}
}

func TestDecrementStockRejectsBadParams(t *testing.T) {
	repo, _ := setupProductRepositoryTest(t)
	if _, err := repo.DecrementStock(0, 1); err == nil {
		t.Fatalf("zero id accepted")
	}
	if _, err := repo.DecrementStock(1, 0); err == nil {
		t.Fatalf("zero quantity accepted")
	}
	if _, err := repo.IncrementStock(1, -1); err == nil {
		t.Fatalf("negative quantity accepted")
	}
}
