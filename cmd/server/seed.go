package main

import (
	"fmt"
	"time"

	"pharmos/internal/database"
	"pharmos/internal/models"
	"pharmos/pkg/logger"
	"pharmos/pkg/rbac"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 1. 创建订阅套餐
	if err := createDefaultPlans(db); err != nil {
		return fmt.Errorf("创建订阅套餐失败: %v", err)
	}

	// 2. 创建默认租户和主网点
	if err := createDefaultTenant(db); err != nil {
		return fmt.Errorf("创建默认租户失败: %v", err)
	}

	// 3. 创建平台超级管理员
	if err := createDefaultAdmin(db); err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultPlans 创建三档订阅套餐
func createDefaultPlans(db *gorm.DB) error {
	var count int64
	db.Model(&models.SubscriptionPlan{}).Count(&count)
	if count > 0 {
		logger.GetLogger().Info("订阅套餐已存在，跳过创建")
		return nil
	}

	plans := []models.SubscriptionPlan{
		{
			Name:            "Basic",
			Code:            "basic",
			Tier:            1,
			Price:           99,
			MaxUsers:        5,
			MaxBranches:     1,
			MaxProducts:     500,
			MaxTransactions: 1000,
			MaxStorageGB:    5,
			Features: datatypes.JSON([]byte(`["Inventory Management","Sales","Patient Records","User Management"]`)),
		},
		{
			Name:            "Professional",
			Code:            "professional",
			Tier:            2,
			Price:           299,
			MaxUsers:        20,
			MaxBranches:     5,
			MaxProducts:     5000,
			MaxTransactions: 20000,
			MaxStorageGB:    50,
			Features: datatypes.JSON([]byte(`["Inventory Management","Sales","Patient Records","User Management","Multi-Branch Management","Prescription Management","Advanced Reports"]`)),
		},
		{
			Name:            "Enterprise",
			Code:            "enterprise",
			Tier:            3,
			Price:           899,
			MaxUsers:        models.UnlimitedLimit,
			MaxBranches:     models.UnlimitedLimit,
			MaxProducts:     models.UnlimitedLimit,
			MaxTransactions: models.UnlimitedLimit,
			MaxStorageGB:    500,
			Features: datatypes.JSON([]byte(`["All Features"]`)),
		},
	}

	if err := db.Create(&plans).Error; err != nil {
		return err
	}

	logger.GetLogger().Info("订阅套餐创建成功")
	return nil
}

// createDefaultTenant 创建默认租户、主网点和初始订阅
func createDefaultTenant(db *gorm.DB) error {
	var count int64
	db.Model(&models.Tenant{}).Where("code = ?", "default").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("默认租户已存在，跳过创建")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		tenant := &models.Tenant{
			Name:        "默认药房",
			Code:        "default",
			Status:      models.TenantStatusActive,
			ContactName: "管理员",
		}
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}

		branch := &models.Branch{
			TenantID: tenant.ID,
			Name:     "主门店",
			Code:     "main",
			IsMain:   true,
			Status:   models.BranchStatusActive,
		}
		if err := tx.Create(branch).Error; err != nil {
			return err
		}

		// 默认租户赠送一年企业版
		var plan models.SubscriptionPlan
		if err := tx.Where("code = ?", "enterprise").First(&plan).Error; err != nil {
			return err
		}
		subscription := &models.Subscription{
			TenantID:  tenant.ID,
			PlanID:    plan.ID,
			Status:    models.SubscriptionStatusActive,
			StartDate: time.Now(),
			EndDate:   time.Now().AddDate(1, 0, 0),
		}
		if err := tx.Create(subscription).Error; err != nil {
			return err
		}

		logger.GetLogger().Info("默认租户创建成功")
		return nil
	})
}

// createDefaultAdmin 创建平台超级管理员
func createDefaultAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("默认管理员已存在，跳过创建")
		return nil
	}

	admin := &models.User{
		Username: "admin",
		Email:    "admin@pharmos.local",
		Name:     "平台管理员",
		Role:     rbac.RoleSuperAdmin,
		Status:   models.UserStatusActive,
	}
	if err := admin.SetPassword("Admin@123"); err != nil {
		return err
	}

	if err := db.Create(admin).Error; err != nil {
		return err
	}

	logger.GetLogger().Warn("默认管理员创建成功，用户名 admin，请尽快修改初始密码")
	return nil
}
