package database

import (
	"pharmos/internal/models"
	"pharmos/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.Tenant{},
		&models.Branch{},
		&models.User{},
		&models.UserBranch{},
		&models.Session{},
		// 订阅计费
		&models.SubscriptionPlan{},
		&models.Subscription{},
		// 库存
		&models.Product{},
		&models.StockBatch{},
		// 临床与销售
		&models.Patient{},
		&models.Prescription{},
		&models.PrescriptionItem{},
		&models.Sale{},
		&models.SaleItem{},
		// 通知与审计
		&models.Notification{},
		&models.AuditLog{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")

	// 种子数据初始化将在 main.go 中单独调用，避免循环依赖

	return nil
}
