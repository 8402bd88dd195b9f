package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	apirest "github.com/backline-app/server/api/rest"
	"github.com/backline-app/server/audit"
	"github.com/backline-app/server/cache"
	"github.com/backline-app/server/config"
	dbadapter "github.com/backline-app/server/db"
	"github.com/backline-app/server/incident"
	"github.com/backline-app/server/inventory"
	mw "github.com/backline-app/server/middleware"
	"github.com/backline-app/server/model"
	"github.com/backline-app/server/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Services ----
	incidentSvc := incident.NewService(db, logger)
	inventorySvc := inventory.NewService(db, incidentSvc, c, cfg.Fleet.ItemLockTTL, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	sched.AddTicker("incident_aging_sweep", cfg.Fleet.IncidentStaleAfter/4, func() {
		n, err := incidentSvc.MarkStale(context.Background(), cfg.Fleet.IncidentStaleAfter)
		if err != nil {
			logger.Error("incident aging sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("flagged stale incidents", zap.Int64("count", n))
		}
	})
	sched.AddTicker("audit_prune", 24*time.Hour, func() {
		n, err := auditSvc.Prune(context.Background(), cfg.Fleet.AuditRetention)
		if err != nil {
			logger.Error("audit prune failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("pruned audit rows", zap.Int64("count", n))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	itemH := apirest.NewItemHandler(db, inventorySvc, auditSvc)
	incidentH := apirest.NewIncidentHandler(incidentSvc, inventorySvc, auditSvc)
	fleetH := apirest.NewFleetHandler(db)
	adminH := apirest.NewAdminHandler(db, sched)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		itemsG := api.Group("/items")
		itemsG.Use(mw.Auth(cfg.Security, c))
		itemsG.GET("", itemH.List)
		itemsG.GET("/:id", itemH.Get)
		itemsG.POST("", mw.RequireRole(model.RoleAdmin), itemH.Create)
		itemsG.PUT("/:id", mw.RequireRole(model.RoleAdmin), itemH.Update)
		itemsG.DELETE("/:id", mw.RequireRole(model.RoleAdmin), itemH.Delete)
		itemsG.POST("/:id/locations", mw.RequireRole(model.RoleAdmin), itemH.AddLocation)
		itemsG.POST("/:id/report-defect", itemH.ReportDefect)
		itemsG.POST("/:id/mark-ordered", mw.RequireRole(model.RoleAdmin), itemH.MarkOrdered)
		itemsG.POST("/:id/send-to-repair", mw.RequireRole(model.RoleAdmin), itemH.SendToRepair)
		itemsG.POST("/:id/restore", mw.RequireRole(model.RoleAdmin), itemH.Restore)

		incidentsG := api.Group("/incidents")
		incidentsG.Use(mw.Auth(cfg.Security, c))
		incidentsG.GET("", incidentH.List)
		incidentsG.GET("/:id", incidentH.Get)
		incidentsG.POST("", incidentH.Create)
		incidentsG.PUT("/:id", mw.RequireRole(model.RoleAdmin), incidentH.Update)
		incidentsG.POST("/:id/resolve", mw.RequireRole(model.RoleAdmin), incidentH.Resolve)

		fleetG := api.Group("")
		fleetG.Use(mw.Auth(cfg.Security, c))
		fleetG.GET("/fleet", fleetH.MyFleet)
		fleetG.GET("/vehicles", fleetH.ListVehicles)
		fleetG.GET("/vehicles/:id", fleetH.GetVehicle)
		fleetG.POST("/vehicles", mw.RequireRole(model.RoleAdmin), fleetH.CreateVehicle)
		fleetG.PUT("/vehicles/:id", mw.RequireRole(model.RoleAdmin), fleetH.UpdateVehicle)
		fleetG.GET("/warehouses", fleetH.ListWarehouses)
		fleetG.POST("/warehouses", mw.RequireRole(model.RoleAdmin), fleetH.CreateWarehouse)
		fleetG.PUT("/warehouses/:id", mw.RequireRole(model.RoleAdmin), fleetH.UpdateWarehouse)
		fleetG.DELETE("/warehouses/:id", mw.RequireRole(model.RoleAdmin), fleetH.DeleteWarehouse)
		fleetG.GET("/workshops", fleetH.ListWorkshops)
		fleetG.POST("/workshops", mw.RequireRole(model.RoleAdmin), fleetH.CreateWorkshop)
		fleetG.PUT("/workshops/:id", mw.RequireRole(model.RoleAdmin), fleetH.UpdateWorkshop)
		fleetG.DELETE("/workshops/:id", mw.RequireRole(model.RoleAdmin), fleetH.DeleteWorkshop)
		fleetG.GET("/renters", fleetH.ListRenters)
		fleetG.POST("/renters", mw.RequireRole(model.RoleAdmin), fleetH.CreateRenter)
		fleetG.PUT("/renters/:id", mw.RequireRole(model.RoleAdmin), fleetH.UpdateRenter)
		fleetG.DELETE("/renters/:id", mw.RequireRole(model.RoleAdmin), fleetH.DeleteRenter)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/overview", adminH.Overview)
		adminG.POST("/users", adminH.CreateUser)
		adminG.PUT("/users/:id/status", adminH.SetUserStatus)
		adminG.GET("/tasks", adminH.Tasks)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
