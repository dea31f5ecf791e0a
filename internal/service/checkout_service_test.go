package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCheckoutServiceTest(t *testing.T) (*CheckoutService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.ShippingMethod{},
		&models.Product{},
		&models.CartItem{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderLog{},
		&models.BalanceAccount{},
		&models.BalanceTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	balanceSvc := NewBalanceService(repository.NewBalanceRepository(db))
	svc := NewCheckoutService(
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
		repository.NewCartRepository(db),
		repository.NewAddressRepository(db),
		repository.NewShippingRepository(db),
		repository.NewCouponRepository(db),
		repository.NewUserRepository(db),
		balanceSvc,
		nil,
	)
	return svc, db
}

type checkoutFixture struct {
	user     *models.User
	address  *models.Address
	shipping *models.ShippingMethod
	product  *models.Product
	cartItem *models.CartItem
}

func seedCheckoutFixture(t *testing.T, db *gorm.DB, price int64, stock, quantity int) *checkoutFixture {
	t.Helper()
	now := time.Now()

	user := &models.User{
		Email:        fmt.Sprintf("checkout_%d@example.com", now.UnixNano()),
		PasswordHash: "hash",
		Status:       constants.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	address := &models.Address{
		UserID:        user.ID,
		ReceiverName:  "张三",
		ReceiverPhone: "13800000000",
		Province:      "广东省",
		City:          "深圳市",
		District:      "南山区",
		Detail:        "科技园1号",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(address).Error; err != nil {
		t.Fatalf("create address failed: %v", err)
	}

	shipping := &models.ShippingMethod{
		Name:      "普通快递",
		Fee:       models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(shipping).Error; err != nil {
		t.Fatalf("create shipping method failed: %v", err)
	}

	product := &models.Product{
		Name:        "测试商品",
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(price)),
		Stock:       stock,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	cartItem := &models.CartItem{
		UserID:    user.ID,
		ProductID: product.ID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(cartItem).Error; err != nil {
		t.Fatalf("create cart item failed: %v", err)
	}

	return &checkoutFixture{
		user:     user,
		address:  address,
		shipping: shipping,
		product:  product,
		cartItem: cartItem,
	}
}

func TestCheckoutSubmitComputesTotals(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 40, 10, 3)

	result, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
		Remark:           "尽快发货",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	order := result.Order
	if order.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", order.Status)
	}
	if !order.TotalAmount.Decimal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("total = %s, want 120", order.TotalAmount)
	}
	if !order.ShippingFee.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("shipping fee = %s, want 10", order.ShippingFee)
	}
	if !order.PayAmount.Decimal.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("pay amount = %s, want 130", order.PayAmount)
	}
	if !result.NeedsPayment {
		t.Fatalf("needs payment = false, want true")
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Fatalf("order items = %+v, want one item of quantity 3", order.Items)
	}
	if order.ReceiverAddress == "" || order.ReceiverName != "张三" {
		t.Fatalf("receiver snapshot missing: %+v", order)
	}
	if order.ExpiresAt == nil {
		t.Fatalf("expires_at not set")
	}

	var product models.Product
	if err := db.First(&product, fx.product.ID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("stock = %d, want 7", product.Stock)
	}

	var cartCount int64
	if err := db.Model(&models.CartItem{}).Where("user_id = ?", fx.user.ID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart items failed: %v", err)
	}
	if cartCount != 0 {
		t.Fatalf("cart count = %d, want 0", cartCount)
	}

	var logCount int64
	if err := db.Model(&models.OrderLog{}).Where("order_id = ? AND action = ?", order.ID, "order_created").Count(&logCount).Error; err != nil {
		t.Fatalf("count order logs failed: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("order_created log count = %d, want 1", logCount)
	}
}

func TestCheckoutSubmitSplitsBalanceAndGateway(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 70, 5, 2)
	seedBalanceAccount(t, db, fx.user.ID, 50)

	// 应付 70*2+10=150，余额 50 抵扣后渠道侧还需 100
	result, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
		BalanceAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.BalancePaid.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance paid = %s, want 50", result.BalancePaid)
	}
	if !result.PayAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pay amount = %s, want 100", result.PayAmount)
	}
	if !result.NeedsPayment {
		t.Fatalf("needs payment = false, want true")
	}

	var account models.BalanceAccount
	if err := db.Where("user_id = ?", fx.user.ID).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.IsZero() {
		t.Fatalf("account balance = %s, want 0", account.Balance)
	}
}

func TestCheckoutSubmitUsesPartOfBalance(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 70, 5, 2)
	seedBalanceAccount(t, db, fx.user.ID, 100)

	// 余额 100 只请求 50，应付 150 中渠道侧还需 100
	result, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
		BalanceAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.BalancePaid.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance paid = %s, want 50", result.BalancePaid)
	}
	if !result.PayAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pay amount = %s, want 100", result.PayAmount)
	}

	var account models.BalanceAccount
	if err := db.Where("user_id = ?", fx.user.ID).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("account balance = %s, want 50", account.Balance)
	}
}

func TestCheckoutSubmitBalanceRequestExceedsAccount(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 70, 5, 2)
	seedBalanceAccount(t, db, fx.user.ID, 30)

	_, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
		BalanceAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
	})
	if !errors.Is(err, ErrBalanceInsufficient) {
		t.Fatalf("err = %v, want ErrBalanceInsufficient", err)
	}

	// 整单回滚：订单未落库，库存与余额原封不动
	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("order count = %d, want 0", orderCount)
	}
	var product models.Product
	if err := db.First(&product, fx.product.ID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	if product.Stock != 5 {
		t.Fatalf("stock = %d, want 5 after rollback", product.Stock)
	}
	var account models.BalanceAccount
	if err := db.Where("user_id = ?", fx.user.ID).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("account balance = %s, want 30", account.Balance)
	}
}

func TestCheckoutSubmitOutOfStockRollsBack(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 40, 1, 2)

	_, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
	})
	if !errors.Is(err, ErrProductOutOfStock) {
		t.Fatalf("err = %v, want ErrProductOutOfStock", err)
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("order count = %d, want 0", orderCount)
	}
	var product models.Product
	if err := db.First(&product, fx.product.ID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	if product.Stock != 1 {
		t.Fatalf("stock = %d, want 1 after rollback", product.Stock)
	}
	var cartCount int64
	if err := db.Model(&models.CartItem{}).Where("user_id = ?", fx.user.ID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart items failed: %v", err)
	}
	if cartCount != 1 {
		t.Fatalf("cart count = %d, want 1", cartCount)
	}
}

func TestCheckoutSubmitConcurrentLastUnit(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 40, 1, 1)
	rival := seedCheckoutFixture(t, db, 40, 1, 1)
	// 两个用户抢同一件最后库存
	if err := db.Model(&models.CartItem{}).Where("id = ?", rival.cartItem.ID).Update("product_id", fx.product.ID).Error; err != nil {
		t.Fatalf("repoint rival cart item failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	inputs := []CheckoutInput{
		{
			UserID:           fx.user.ID,
			CartItemIDs:      []uint{fx.cartItem.ID},
			AddressID:        fx.address.ID,
			ShippingMethodID: fx.shipping.ID,
		},
		{
			UserID:           rival.user.ID,
			CartItemIDs:      []uint{rival.cartItem.ID},
			AddressID:        rival.address.ID,
			ShippingMethodID: rival.shipping.ID,
		},
	}
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(inputs[i])
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrProductOutOfStock):
			lost++
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("won = %d, lost = %d, want 1 and 1", won, lost)
	}

	var product models.Product
	if err := db.First(&product, fx.product.ID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("stock = %d, want 0", product.Stock)
	}
	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("order count = %d, want 1", orderCount)
	}
}

func TestCheckoutSubmitAppliesFixedCoupon(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 60, 5, 2)
	now := time.Now()

	coupon := &models.Coupon{
		Code:       "SAVE20",
		Type:       "fixed",
		Value:      models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		MinAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		UsageLimit: 1,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}

	result, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
		CouponCode:       "SAVE20",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	order := result.Order
	if !order.DiscountAmount.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("discount = %s, want 20", order.DiscountAmount)
	}
	// 120 + 10 - 20
	if !order.PayAmount.Decimal.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("pay amount = %s, want 110", order.PayAmount)
	}
	if order.CouponID == nil || *order.CouponID != coupon.ID {
		t.Fatalf("coupon id not recorded on order")
	}

	var usageCount int64
	if err := db.Model(&models.CouponUsage{}).Where("coupon_id = ? AND order_id = ?", coupon.ID, order.ID).Count(&usageCount).Error; err != nil {
		t.Fatalf("count coupon usages failed: %v", err)
	}
	if usageCount != 1 {
		t.Fatalf("coupon usage count = %d, want 1", usageCount)
	}
	var fresh models.Coupon
	if err := db.First(&fresh, coupon.ID).Error; err != nil {
		t.Fatalf("load coupon failed: %v", err)
	}
	if fresh.UsedCount != 1 {
		t.Fatalf("used count = %d, want 1", fresh.UsedCount)
	}
}

func TestCheckoutSubmitCouponMinNotReached(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 30, 5, 1)
	now := time.Now()

	coupon := &models.Coupon{
		Code:      "BIGONLY",
		Type:      "fixed",
		Value:     models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		MinAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}

	_, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
		CouponCode:       "BIGONLY",
	})
	if !errors.Is(err, ErrCouponMinNotReached) {
		t.Fatalf("err = %v, want ErrCouponMinNotReached", err)
	}
}

func TestCheckoutSubmitRejectsInactiveProduct(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 40, 5, 1)
	if err := db.Model(&models.Product{}).Where("id = ?", fx.product.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}

	_, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
	})
	if !errors.Is(err, ErrProductInactive) {
		t.Fatalf("err = %v, want ErrProductInactive", err)
	}
}

func TestCheckoutSubmitB2BRequiresCertification(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 40, 5, 1)

	_, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		FlowType:         constants.OrderFlowTypeB2B,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
	})
	if !errors.Is(err, ErrUserNotCertified) {
		t.Fatalf("err = %v, want ErrUserNotCertified", err)
	}

	if err := db.Model(&models.User{}).Where("id = ?", fx.user.ID).Update("is_certified", true).Error; err != nil {
		t.Fatalf("certify user failed: %v", err)
	}
	result, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		FlowType:         constants.OrderFlowTypeB2B,
		CartItemIDs:      []uint{fx.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Order.FlowType != constants.OrderFlowTypeB2B {
		t.Fatalf("flow type = %s, want b2b", result.Order.FlowType)
	}
}

func TestCheckoutSubmitOtherUsersCartItemRejected(t *testing.T) {
	svc, db := setupCheckoutServiceTest(t)
	fx := seedCheckoutFixture(t, db, 40, 5, 1)
	other := seedCheckoutFixture(t, db, 40, 5, 1)

	_, err := svc.Submit(CheckoutInput{
		UserID:           fx.user.ID,
		CartItemIDs:      []uint{other.cartItem.ID},
		AddressID:        fx.address.ID,
		ShippingMethodID: fx.shipping.ID,
	})
	if !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("err = %v, want ErrCartItemNotFound", err)
	}
}
