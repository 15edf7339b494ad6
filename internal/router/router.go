package router

import (
	"time"

	"pharmos/internal/database"
	"pharmos/internal/handlers"
	"pharmos/internal/middleware"
	"pharmos/internal/services"
	"pharmos/pkg/config"
	"pharmos/pkg/jwt"
	"pharmos/pkg/rbac"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {
	cfg := config.GetConfig()
	db := database.GetDB()
	redisQueue := database.GetRedisQueue()

	// 服务层
	securityService := services.NewSecurityService(db)
	sessionService := services.NewSessionService(db)
	userService := services.NewUserService(db)
	tenantService := services.NewTenantService(db)
	branchService := services.NewBranchService(db)
	auditService := services.NewAuditService(db)
	usageService := services.NewUsageService(db, redisQueue.GetClient(), time.Duration(cfg.Subscription.UsageCacheTTL)*time.Second)
	subscriptionService := services.NewSubscriptionService(db)
	gateService := services.NewGateService(subscriptionService, usageService)
	productService := services.NewProductService(db, auditService)
	saleService := services.NewSaleService(db, auditService, usageService)
	prescriptionService := services.NewPrescriptionService(db, saleService, auditService)
	patientService := services.NewPatientService(db)
	notificationService := services.NewNotificationService(db, redisQueue)

	// 中间件
	auth := middleware.NewAuthMiddleware(securityService, jwt.GetJWTManager())
	branchIsolation := middleware.NewBranchIsolationMiddleware(db)
	subscriptionGate := middleware.NewSubscriptionMiddleware(gateService, cfg.Subscription.UpgradeURL)

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		systemHandler := handlers.NewSystemHandler(db, redisQueue)
		api.GET("/health", systemHandler.Health)
		api.GET("/ping", systemHandler.Ping)

		// JWT认证路由（无需认证）
		authHandler := handlers.NewAuthHandler(userService, sessionService, securityService, auditService, jwt.GetJWTManager())
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)          // 用户登录
			authGroup.POST("/logout", authHandler.Logout)        // 用户登出
			authGroup.POST("/refresh", authHandler.RefreshToken) // 刷新Token

			// 🔒 获取当前用户完整信息
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)

			// 🔒 模拟登录（平台运维排障用）
			authGroup.POST("/impersonate/:id", auth.RequireLogin(), auth.RequirePermission(rbac.PermSystemImpersonate), authHandler.Impersonate)
			authGroup.POST("/stop-impersonation", auth.RequireLogin(), authHandler.StopImpersonation)
		}

		// 订阅计费路由（只需登录，不经过订阅闸口，否则欠费租户无法续费）
		billingHandler := handlers.NewBillingHandler(subscriptionService, usageService, auditService)
		billing := api.Group("/billing", auth.RequireLogin())
		{
			billing.GET("/plans", billingHandler.GetPlans)
			billing.GET("/subscription", billingHandler.GetCurrent)
			billing.POST("/subscription/change-plan", auth.RequireRole(rbac.RoleTenantAdmin), billingHandler.ChangePlan)
			billing.GET("/usage", billingHandler.GetUsage)
			billing.GET("/history", billingHandler.GetHistory)
		}

		// 业务路由：登录 → 网点隔离 → 订阅闸口，顺序不能调换
		protected := api.Group("", auth.RequireLogin(), branchIsolation.Handler(), subscriptionGate.Handler())
		{
			// 🔒 租户管理（仅全局角色）
			tenantHandler := handlers.NewTenantHandler(tenantService)
			tenants := protected.Group("/tenants", auth.RequireGlobalRole())
			{
				tenants.POST("", auth.RequirePermission(rbac.PermTenantCreate), tenantHandler.Create)
				tenants.GET("", auth.RequirePermission(rbac.PermTenantList), tenantHandler.GetAll)
				tenants.GET("/stats", auth.RequirePermission(rbac.PermTenantList), tenantHandler.GetStats)
				tenants.GET("/:id", auth.RequirePermission(rbac.PermTenantRead), tenantHandler.GetByID)
				tenants.PUT("/:id", auth.RequirePermission(rbac.PermTenantUpdate), tenantHandler.Update)
				tenants.DELETE("/:id", auth.RequirePermission(rbac.PermTenantDelete), tenantHandler.Delete)
			}

			// 🔒 用户管理
			userHandler := handlers.NewUserHandler(userService, branchService, usageService, auditService)
			users := protected.Group("/users")
			{
				users.POST("", auth.RequirePermission(rbac.PermUserCreate), userHandler.Create)
				users.GET("", auth.RequirePermission(rbac.PermUserList), userHandler.GetAll)
				users.GET("/:id", auth.RequirePermission(rbac.PermUserRead), userHandler.GetByID)
				users.PUT("/:id", auth.RequirePermission(rbac.PermUserUpdate), userHandler.Update)
				users.POST("/:id/activate", auth.RequirePermission(rbac.PermUserUpdate), userHandler.Activate)
				users.POST("/:id/deactivate", auth.RequirePermission(rbac.PermUserUpdate), userHandler.Deactivate)
				users.POST("/:id/reset-password", userHandler.ResetPassword)

				// 网点授权
				users.GET("/:id/branches", auth.RequirePermission(rbac.PermUserRead), userHandler.GetBranches)
				users.POST("/:id/branches", auth.RequirePermission(rbac.PermUserAssignBranch), userHandler.AssignBranch)
				users.DELETE("/:id/branches/:branch_id", auth.RequirePermission(rbac.PermUserAssignBranch), userHandler.RevokeBranch)
			}

			// 🔒 网点管理（租户管理员及以上）
			branchHandler := handlers.NewBranchHandler(branchService, usageService)
			branches := protected.Group("/branches")
			{
				branches.POST("", auth.RequireRole(rbac.RoleTenantAdmin), branchHandler.Create)
				branches.GET("", branchHandler.GetAll)
				branches.GET("/:id", branchHandler.GetByID)
				branches.PUT("/:id", auth.RequireRole(rbac.RoleTenantAdmin), branchHandler.Update)
				branches.POST("/:id/deactivate", auth.RequireRole(rbac.RoleTenantAdmin), branchHandler.Deactivate)
			}

			// 🔒 药品与库存
			productHandler := handlers.NewProductHandler(productService, usageService)
			products := protected.Group("/products")
			{
				products.POST("", auth.RequirePermission(rbac.PermInventoryCreate), productHandler.Create)
				products.GET("", auth.RequirePermission(rbac.PermInventoryList), productHandler.GetAll)
				products.GET("/low-stock", auth.RequirePermission(rbac.PermInventoryList), productHandler.GetLowStock)
				products.GET("/expiring", auth.RequirePermission(rbac.PermInventoryList), productHandler.GetExpiring)
				products.GET("/:id", auth.RequirePermission(rbac.PermInventoryRead), productHandler.GetByID)
				products.PUT("/:id", auth.RequirePermission(rbac.PermInventoryUpdate), productHandler.Update)
				products.POST("/:id/adjust-stock", auth.RequirePermission(rbac.PermInventoryAdjust), productHandler.AdjustStock)
				products.POST("/:id/batches", auth.RequirePermission(rbac.PermInventoryCreate), productHandler.AddBatch)
				products.GET("/:id/batches", auth.RequirePermission(rbac.PermInventoryRead), productHandler.GetBatches)
			}

			// 🔒 销售
			saleHandler := handlers.NewSaleHandler(saleService)
			sales := protected.Group("/sales")
			{
				sales.POST("", auth.RequirePermission(rbac.PermSalesCreate), saleHandler.Create)
				sales.GET("", auth.RequirePermission(rbac.PermSalesList), saleHandler.GetAll)
				sales.GET("/daily-summary", auth.RequirePermission(rbac.PermReportsView), saleHandler.GetDailySummary)
				sales.GET("/:id", auth.RequirePermission(rbac.PermSalesRead), saleHandler.GetByID)
				sales.POST("/:id/refund", auth.RequirePermission(rbac.PermSalesRefund), saleHandler.Refund)
			}

			// 🔒 处方
			prescriptionHandler := handlers.NewPrescriptionHandler(prescriptionService)
			prescriptions := protected.Group("/prescriptions")
			{
				prescriptions.POST("", auth.RequirePermission(rbac.PermPrescriptionCreate), prescriptionHandler.Create)
				prescriptions.GET("", auth.RequirePermission(rbac.PermPrescriptionList), prescriptionHandler.GetAll)
				prescriptions.GET("/:id", auth.RequirePermission(rbac.PermPrescriptionRead), prescriptionHandler.GetByID)
				prescriptions.POST("/:id/dispense", auth.RequirePermission(rbac.PermPrescriptionDispense), prescriptionHandler.Dispense)
				prescriptions.POST("/:id/cancel", auth.RequirePermission(rbac.PermPrescriptionCreate), prescriptionHandler.Cancel)
			}

			// 🔒 患者档案
			patientHandler := handlers.NewPatientHandler(patientService)
			patients := protected.Group("/patients")
			{
				patients.POST("", auth.RequirePermission(rbac.PermPatientCreate), patientHandler.Create)
				patients.GET("", auth.RequirePermission(rbac.PermPatientList), patientHandler.GetAll)
				patients.GET("/:id", auth.RequirePermission(rbac.PermPatientRead), patientHandler.GetByID)
				patients.PUT("/:id", auth.RequirePermission(rbac.PermPatientUpdate), patientHandler.Update)
				patients.POST("/:id/archive", auth.RequirePermission(rbac.PermPatientUpdate), patientHandler.Archive)
			}

			// 🔒 通知
			notificationHandler := handlers.NewNotificationHandler(notificationService)
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationHandler.GetAll)
				notifications.POST("/:id/read", notificationHandler.MarkRead)
			}

			// 🔒 审计日志（合规查询）
			auditHandler := handlers.NewAuditHandler(auditService)
			protected.GET("/audit-logs", auth.RequirePermission(rbac.PermSystemAudit), auditHandler.GetAll)
		}
	}

	// WebSocket路由（token通过查询参数传递）
	wsHandler := handlers.NewWebSocketHandler(securityService)
	router.GET("/ws/notifications", wsHandler.Notifications)
}
