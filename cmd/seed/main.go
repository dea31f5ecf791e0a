package main

import (
	"os"
	"strings"

	"github.com/qingmall/internal/config"
	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/logger"
	"github.com/qingmall/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库连接失败: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	seedUsers(stdLog.Printf)
	seedShippingMethods(stdLog.Printf)
	seedProducts(stdLog.Printf)

	stdLog.Printf("种子数据初始化完成")
}

type printfFunc func(format string, v ...interface{})

func seedUsers(printf printfFunc) {
	adminPass := strings.TrimSpace(os.Getenv("QM_SEED_ADMIN_PASSWORD"))
	if adminPass == "" {
		adminPass = "Admin123456"
	}
	users := []struct {
		email       string
		password    string
		displayName string
		isAdmin     bool
	}{
		{"admin@example.com", adminPass, "管理员", true},
		{"demo@example.com", "Demo123456", "演示用户", false},
	}

	for _, u := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", u.email).First(&existing).Error; err == nil {
			printf("用户已存在: %s", u.email)
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			printf("生成密码失败 %s: %v", u.email, err)
			continue
		}
		user := models.User{
			Email:        u.email,
			PasswordHash: string(hash),
			DisplayName:  u.displayName,
			Status:       constants.UserStatusActive,
			IsAdmin:      u.isAdmin,
		}
		if err := models.DB.Create(&user).Error; err != nil {
			printf("创建用户失败 %s: %v", u.email, err)
			continue
		}
		printf("创建用户: %s", u.email)
	}
}

func seedShippingMethods(printf printfFunc) {
	methods := []models.ShippingMethod{
		{Name: "普通快递", Fee: models.NewMoneyFromDecimal(decimal.NewFromInt(10)), IsActive: true, SortOrder: 1},
		{Name: "顺丰速运", Fee: models.NewMoneyFromDecimal(decimal.NewFromInt(20)), IsActive: true, SortOrder: 2},
		{Name: "到店自提", Fee: models.NewMoneyFromDecimal(decimal.Zero), IsActive: true, SortOrder: 3},
	}
	for _, m := range methods {
		var existing models.ShippingMethod
		if err := models.DB.Where("name = ?", m.Name).First(&existing).Error; err == nil {
			printf("配送方式已存在: %s", m.Name)
			continue
		}
		if err := models.DB.Create(&m).Error; err != nil {
			printf("创建配送方式失败 %s: %v", m.Name, err)
			continue
		}
		printf("创建配送方式: %s", m.Name)
	}
}

func seedProducts(printf printfFunc) {
	products := []models.Product{
		{Name: "无线蓝牙耳机", PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(199.00)), Stock: 100, IsActive: true, SortOrder: 1},
		{Name: "便携保温杯", PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(59.90)), Stock: 200, IsActive: true, SortOrder: 2},
		{Name: "机械键盘", PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(399.00)), Stock: 50, IsActive: true, SortOrder: 3},
		{Name: "桌面收纳盒", PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(29.90)), Stock: 300, IsActive: true, SortOrder: 4},
	}
	for _, p := range products {
		var existing models.Product
		if err := models.DB.Where("name = ?", p.Name).First(&existing).Error; err == nil {
			printf("商品已存在: %s", p.Name)
			continue
		}
		if err := models.DB.Create(&p).Error; err != nil {
			printf("创建商品失败 %s: %v", p.Name, err)
			continue
		}
		printf("创建商品: %s", p.Name)
	}
}
