package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/nimo-mrp/internal/config"
	"github.com/bitfantasy/nimo-mrp/internal/middleware"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/handler"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-mrp service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, rdb, repos, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	// 初始管理员
	seedAdminUser(db, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// seedAdminUser 首次启动时创建默认管理员，密码来自 MRP_ADMIN_PASSWORD
func seedAdminUser(db *gorm.DB, zapLogger *zap.Logger) {
	var count int64
	db.Model(&entity.User{}).Where("role = ?", entity.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}

	password := os.Getenv("MRP_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123456"
		zapLogger.Warn("MRP_ADMIN_PASSWORD not set, using default password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zapLogger.Error("Failed to hash admin password", zap.Error(err))
		return
	}

	admin := &entity.User{
		Username:     "admin",
		Name:         "系统管理员",
		PasswordHash: string(hash),
		Role:         entity.RoleAdmin,
		Status:       entity.UserStatusActive,
	}
	if err := db.Create(admin).Error; err != nil {
		zapLogger.Error("Failed to seed admin user", zap.Error(err))
		return
	}
	zapLogger.Info("Seeded default admin user", zap.String("username", "admin"))
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.POST("/auth/password", h.Auth.ChangePassword)

			// 用户管理（仅管理员）
			users := authorized.Group("/users")
			users.Use(middleware.RequireRole(entity.RoleAdmin))
			{
				users.GET("", h.User.ListUsers)
				users.GET("/:id", h.User.GetUser)
				users.POST("", h.User.CreateUser)
				users.PUT("/:id", h.User.UpdateUser)
				users.DELETE("/:id", h.User.DeleteUser)
			}

			// 物料主数据
			materials := authorized.Group("/materials")
			{
				materials.GET("", h.Material.ListMaterials)
				materials.GET("/groups", h.Material.ListGroups)
				materials.GET("/units", h.Material.ListUnits)
				materials.GET("/containers", h.Material.ListContainerTypes)
				materials.GET("/:id", h.Material.GetMaterial)
				materials.POST("", middleware.RequireRole(entity.RolePlanner), h.Material.CreateMaterial)
				materials.PUT("/:id", middleware.RequireRole(entity.RolePlanner), h.Material.UpdateMaterial)
				materials.DELETE("/:id", middleware.RequireRole(entity.RolePlanner), h.Material.DeleteMaterial)
			}

			// 仓库
			warehouses := authorized.Group("/warehouses")
			{
				warehouses.GET("", h.Warehouse.ListWarehouses)
				warehouses.GET("/:id", h.Warehouse.GetWarehouse)
				warehouses.POST("", middleware.RequireRole(entity.RolePlanner), h.Warehouse.CreateWarehouse)
				warehouses.PUT("/:id", middleware.RequireRole(entity.RolePlanner), h.Warehouse.UpdateWarehouse)
				warehouses.DELETE("/:id", middleware.RequireRole(entity.RolePlanner), h.Warehouse.DeleteWarehouse)
			}

			// 供应商
			suppliers := authorized.Group("/suppliers")
			{
				suppliers.GET("", h.Supplier.ListSuppliers)
				suppliers.GET("/:id", h.Supplier.GetSupplier)
				suppliers.POST("", middleware.RequireRole(entity.RolePlanner), h.Supplier.CreateSupplier)
				suppliers.PUT("/:id", middleware.RequireRole(entity.RolePlanner), h.Supplier.UpdateSupplier)
				suppliers.POST("/:id/score", middleware.RequireRole(entity.RolePlanner), h.Supplier.ScoreSupplier)
				suppliers.DELETE("/:id", middleware.RequireRole(entity.RolePlanner), h.Supplier.DeleteSupplier)
			}

			// 库存台账
			inventory := authorized.Group("/inventory")
			{
				inventory.GET("/lots", h.Inventory.ListLots)
				inventory.GET("/balances", h.Inventory.GetBalances)
				inventory.GET("/alerts", h.Inventory.GetLowStockAlerts)
				inventory.GET("/transactions", h.Inventory.ListTransactions)
				inventory.GET("/suggest", h.Inventory.SuggestLots)
				inventory.POST("/receipt", middleware.RequireRole(entity.RolePlanner), h.Inventory.GoodsReceipt)
				inventory.POST("/issue", middleware.RequireRole(entity.RolePlanner), h.Inventory.GoodsIssue)
				inventory.POST("/transfer", middleware.RequireRole(entity.RolePlanner), h.Inventory.Transfer)
				inventory.POST("/adjust", middleware.RequireRole(entity.RolePlanner), h.Inventory.Adjust)
			}

			// 产品与BOM
			products := authorized.Group("/products")
			{
				products.GET("", h.Product.ListProducts)
				products.GET("/:id", h.Product.GetProduct)
				products.GET("/:id/bom", h.Product.ListBOMLines)
				products.GET("/:id/requirements", h.Product.ComputeRequirements)
				products.POST("", middleware.RequireRole(entity.RolePlanner), h.Product.CreateProduct)
				products.PUT("/:id", middleware.RequireRole(entity.RolePlanner), h.Product.UpdateProduct)
				products.DELETE("/:id", middleware.RequireRole(entity.RolePlanner), h.Product.DeleteProduct)
				products.POST("/:id/bom", middleware.RequireRole(entity.RolePlanner), h.Product.AddBOMLine)
			}
			authorized.PUT("/bom-lines/:id", middleware.RequireRole(entity.RolePlanner), h.Product.UpdateBOMLine)

			// 生产计划
			plans := authorized.Group("/plans")
			{
				plans.GET("", h.Plan.ListPlans)
				plans.GET("/:id", h.Plan.GetPlan)
				plans.GET("/:id/allocations", h.Plan.ListAllocations)
				plans.POST("", middleware.RequireRole(entity.RolePlanner), h.Plan.CreatePlan)
				plans.PUT("/:id", middleware.RequireRole(entity.RolePlanner), h.Plan.UpdatePlan)
				plans.POST("/:id/confirm", middleware.RequireRole(entity.RolePlanner), h.Plan.ConfirmPlan)
				plans.POST("/:id/start", middleware.RequireRole(entity.RolePlanner), h.Plan.StartPlan)
				plans.POST("/:id/complete", middleware.RequireRole(entity.RolePlanner), h.Plan.CompletePlan)
				plans.POST("/:id/cancel", middleware.RequireRole(entity.RolePlanner), h.Plan.CancelPlan)
				plans.POST("/:id/duplicate", middleware.RequireRole(entity.RolePlanner), h.Plan.DuplicatePlan)
			}

			// 采购
			procurement := authorized.Group("/procurement")
			{
				procurement.GET("/recommendations", h.Procurement.GetRecommendations)
				procurement.GET("/orders", h.Procurement.ListPOs)
				procurement.GET("/orders/:id", h.Procurement.GetPO)
				procurement.POST("/orders", middleware.RequireRole(entity.RolePlanner), h.Procurement.CreatePO)
				procurement.POST("/orders/:id/submit", middleware.RequireRole(entity.RolePlanner), h.Procurement.SubmitPO)
				procurement.POST("/orders/:id/approve", middleware.RequireRole(entity.RoleAdmin), h.Procurement.ApprovePO)
				procurement.POST("/orders/:id/send", middleware.RequireRole(entity.RolePlanner), h.Procurement.SendPO)
				procurement.POST("/orders/:id/cancel", middleware.RequireRole(entity.RolePlanner), h.Procurement.CancelPO)
				procurement.POST("/orders/:id/receive", middleware.RequireRole(entity.RolePlanner), h.Procurement.ReceivePO)
			}

			// 审计日志（仅管理员）
			authorized.GET("/audit-logs", middleware.RequireRole(entity.RoleAdmin), h.AuditLog.ListAuditLogs)

			// 看板
			authorized.GET("/dashboard/overview", h.Dashboard.GetOverview)
		}
	}
}
