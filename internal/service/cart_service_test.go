package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCartServiceTest(t *testing.T) (*CartService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:cart_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.CartItem{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	svc := NewCartService(
		repository.NewCartRepository(db),
		repository.NewProductRepository(db),
	)
	return svc, db
}

func seedCartProduct(t *testing.T, db *gorm.DB, price int64, active bool) *models.Product {
	t.Helper()
	now := time.Now()
	product := &models.Product{
		Name:        "购物车商品",
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(price)),
		Stock:       100,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func TestCartAddItemMergesQuantity(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := seedCartProduct(t, db, 25, true)

	first, err := svc.AddItem(1, product.ID, 2)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	second, err := svc.AddItem(1, product.ID, 3)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("item id = %d, want merged into %d", second.ID, first.ID)
	}
	if second.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", second.Quantity)
	}

	var count int64
	if err := db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count).Error; err != nil {
		t.Fatalf("count items failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("item count = %d, want 1", count)
	}
}

func TestCartAddItemRejectsInactiveProduct(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := seedCartProduct(t, db, 25, false)
	if _, err := svc.AddItem(1, product.ID, 1); !errors.Is(err, ErrProductInactive) {
		t.Fatalf("err = %v, want ErrProductInactive", err)
	}
	if _, err := svc.AddItem(1, 999, 1); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
	if _, err := svc.AddItem(1, product.ID, 0); !errors.Is(err, ErrCartInvalidQuantity) {
		t.Fatalf("err = %v, want ErrCartInvalidQuantity", err)
	}
}

func TestCartUpdateQuantityZeroDeletes(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := seedCartProduct(t, db, 25, true)
	item, err := svc.AddItem(1, product.ID, 2)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	updated, err := svc.UpdateQuantity(1, item.ID, 4)
	if err != nil {
		t.Fatalf("update quantity failed: %v", err)
	}
	if updated.Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", updated.Quantity)
	}

	gone, err := svc.UpdateQuantity(1, item.ID, 0)
	if err != nil {
		t.Fatalf("zero quantity failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("item = %+v, want nil after delete", gone)
	}
	var count int64
	if err := db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count).Error; err != nil {
		t.Fatalf("count items failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("item count = %d, want 0", count)
	}
}

func TestCartCrossUserAccessRejected(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := seedCartProduct(t, db, 25, true)
	item, err := svc.AddItem(1, product.ID, 2)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := svc.UpdateQuantity(2, item.ID, 3); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("cross-user update err = %v, want ErrCartItemNotFound", err)
	}
	if err := svc.RemoveItem(2, item.ID); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("cross-user remove err = %v, want ErrCartItemNotFound", err)
	}
}

func TestCartSummarySkipsInactiveProducts(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	active := seedCartProduct(t, db, 30, true)
	inactive := seedCartProduct(t, db, 100, true)
	if _, err := svc.AddItem(1, active.ID, 2); err != nil {
		t.Fatalf("add active failed: %v", err)
	}
	if _, err := svc.AddItem(1, inactive.ID, 1); err != nil {
		t.Fatalf("add soon-inactive failed: %v", err)
	}
	if err := db.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	summary, err := svc.GetSummary(1)
	if err != nil {
		t.Fatalf("get summary failed: %v", err)
	}
	if len(summary.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(summary.Items))
	}
	// 下架商品不计入小计
	if !summary.Subtotal.Decimal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("subtotal = %s, want 60", summary.Subtotal)
	}
}
