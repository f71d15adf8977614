package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/config"
	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/handler"
	"github.com/Wizard2999/el-super-cafe-backend/internal/middleware"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
	"github.com/Wizard2999/el-super-cafe-backend/internal/service"
	"github.com/Wizard2999/el-super-cafe-backend/internal/stock"
	"github.com/Wizard2999/el-super-cafe-backend/internal/worker"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP
	r.Use(middleware.DeviceID())

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	tableRepo := repository.NewTableRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)

	// ── Core ─────────────────────────────────────────────────────────────────
	engine := stock.NewEngine(productRepo)
	bus := events.NewRedisBroadcaster(rdb)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	syncSvc := service.NewSyncService(shiftRepo, saleRepo, movementRepo, tableRepo, userRepo, syncLogRepo, engine, bus, dispatcher)
	shiftSvc := service.NewShiftService(shiftRepo, saleRepo, movementRepo, userRepo, bus)
	creditSvc := service.NewCreditService(customerRepo, movementRepo, shiftRepo, bus)
	saleSvc := service.NewSaleService(saleRepo, tableRepo, engine, bus, dispatcher)
	tableSvc := service.NewTableService(tableRepo, bus)
	inventorySvc := service.NewInventoryService(productRepo, bus, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	syncH := handler.NewSyncHandler(syncSvc)
	shiftsH := handler.NewShiftsHandler(shiftSvc)
	creditH := handler.NewCreditHandler(creditSvc)
	salesH := handler.NewSalesHandler(saleSvc)
	tablesH := handler.NewTablesHandler(tableSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/pin-login", middleware.LoginRateLimiter(), authH.PinLogin)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleCashier, model.RoleWaiter)
	cashierUp := middleware.RequireRole(model.RoleAdmin, model.RoleCashier)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	api := r.Group("/api", jwtMW)
	{
		sync := api.Group("/sync", anyRole)
		{
			sync.POST("/batch", syncH.Batch)
			sync.POST("/sales", syncH.Sales)
			sync.POST("/movements", syncH.Movements)
			sync.GET("/status", syncH.Status)
			sync.GET("/users", syncH.Users)
			sync.GET("/shifts/open", shiftsH.OpenShifts)
		}

		sales := api.Group("/sales")
		{
			sales.POST("/checkout", cashierUp, salesH.Checkout)
			sales.GET("/:id", anyRole, salesH.Get)
			sales.POST("/:id/cancel", cashierUp, salesH.Cancel)
			sales.DELETE("/:id/items/:itemId", cashierUp, salesH.DeleteItem)
			sales.PATCH("/:id/items/:itemId/status", anyRole, salesH.UpdateItemStatus)
		}

		shifts := api.Group("/shifts", cashierUp)
		{
			shifts.GET("/active", shiftsH.Active)
			shifts.POST("/:id/activate", shiftsH.Activate)
			shifts.POST("/:id/close", shiftsH.Close)
			shifts.POST("/:id/handover", shiftsH.Handover)
			shifts.POST("/:id/handover-close", shiftsH.HandoverAndClose)
			shifts.POST("/:id/atomic-handover", shiftsH.AtomicHandover)
			shifts.POST("/:id/transfer-tables", shiftsH.TransferTables)
		}

		customers := api.Group("/customers", cashierUp)
		{
			customers.GET("/:id", creditH.Detail)
			customers.POST("/:id/payments", creditH.RegisterPayment)
			customers.POST("/:id/opening-balance", adminOnly, creditH.OpeningBalance)
		}

		tables := api.Group("/tables", anyRole)
		{
			tables.GET("", tablesH.List)
			tables.PATCH("/:id/status", tablesH.UpdateStatus)
			tables.GET("/:id/current-order", tablesH.CurrentOrder)
		}

		api.PATCH("/products/:id/stock", adminOnly, inventoryH.AdjustStock)
	}

	return r
}
