package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orgreport/internal/config"
	"orgreport/internal/handler"
	"orgreport/internal/middleware"
	"orgreport/internal/repository"
	"orgreport/internal/service"
	"orgreport/internal/summarizer"
	"orgreport/pkg/database"
	"orgreport/pkg/log"
	"orgreport/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	config.Init("configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	log.Info("Server starting")

	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.RunMigrate(); err != nil {
		log.Fatal("Failed to run migrations", err)
		return
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	jwtManager := token.NewJWTManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpireHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshTokenExpireDays)*24*time.Hour,
	)

	// Repository 层
	userRepo := repository.NewUserRepository(database.DB)
	deptRepo := repository.NewDepartmentRepository(database.DB)
	roleRepo := repository.NewRoleRepository(database.DB)
	reportRepo := repository.NewReportRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)

	// Service 层
	audit := service.NewAuditRecorder(auditRepo)

	// 空库上没有任何角色指派，而授予角色本身需要 manage_users，
	// 必须先种入默认管理员打破僵局。
	if err := service.EnsureDefaultAdmin(userRepo, roleRepo, audit,
		cfg.Admin.UserID, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Fatal("Failed to bootstrap default admin", err)
		return
	}
	hierarchy := service.NewHierarchyService(deptRepo)
	evaluator := service.NewAccessEvaluator(userRepo, roleRepo, deptRepo, hierarchy)
	userService := service.NewUserService(userRepo, evaluator, jwtManager, audit)
	deptService := service.NewDepartmentService(deptRepo, evaluator, audit)
	roleService := service.NewRoleService(roleRepo, userRepo, deptRepo, evaluator, audit)
	reportService := service.NewReportService(reportRepo, deptRepo, evaluator, audit)

	// 摘要客户端：没配 API key 时传 nil，累计报告保持 summary_pending
	var sum service.Summarizer
	if cfg.Summarizer.APIKey != "" {
		sum = summarizer.NewGeminiClient(
			cfg.Summarizer.BaseURL,
			cfg.Summarizer.APIKey,
			cfg.Summarizer.Model,
			time.Duration(cfg.Summarizer.TimeoutSeconds)*time.Second,
		)
	} else {
		log.Warnf("summarizer API key not configured, cumulative reports will stay summary_pending")
	}
	aggregationService := service.NewAggregationService(reportRepo, hierarchy, evaluator, sum, audit)

	// Handler 层
	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService, roleService)
	deptHandler := handler.NewDepartmentHandler(deptService, hierarchy)
	reportHandler := handler.NewReportHandler(reportService, aggregationService)
	auditHandler := handler.NewAuditHandler(audit, evaluator)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	api := r.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)
	// 机器人端转发的注册请求不走登录态
	api.POST("/users/register", userHandler.Register)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(jwtManager, userService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/profile", authHandler.Profile)

		authed.GET("/users", userHandler.List)
		authed.PUT("/users/:id/active", userHandler.SetActive)
		authed.GET("/users/:id/roles", userHandler.ListRoles)
		authed.POST("/users/:id/roles", userHandler.AssignRole)
		authed.DELETE("/users/:id/roles", userHandler.RevokeRole)

		authed.POST("/departments", deptHandler.Create)
		authed.GET("/departments", deptHandler.List)
		authed.GET("/departments/tree", deptHandler.GetTree)
		authed.GET("/departments/:id", deptHandler.Get)
		authed.GET("/departments/:id/subtree", deptHandler.GetSubtree)
		authed.DELETE("/departments/:id", deptHandler.Deactivate)
		authed.GET("/departments/:id/eligible-reports", reportHandler.EligibleSources)

		authed.POST("/reports", reportHandler.Create)
		authed.GET("/reports", reportHandler.List)
		authed.GET("/reports/:id", reportHandler.Get)
		authed.POST("/reports/:id/submit", reportHandler.Submit)
		authed.POST("/reports/:id/resubmit", reportHandler.Resubmit)
		authed.POST("/reports/:id/decision", reportHandler.Decide)
		authed.POST("/reports/:id/archive", reportHandler.Archive)
		authed.POST("/reports/cumulative", reportHandler.CreateCumulative)

		authed.GET("/audit", auditHandler.Recent)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Info("Server stopped gracefully")
}
