package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskhive/api/access"
	"github.com/taskhive/api/audit"
	"github.com/taskhive/api/config"
	"github.com/taskhive/api/controller"
	"github.com/taskhive/api/dao"
	"github.com/taskhive/api/db"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/middleware"
	"github.com/taskhive/api/router"
	"github.com/taskhive/api/service"
	"github.com/taskhive/api/token"
	"github.com/taskhive/api/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	driver, err := db.NewNeo4jDriver()
	if err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j(driver)

	// Initialize the cache store. Token revocation and decision caching
	// depend on it, so refuse to start without a connection.
	cacheStore := db.NewCacheStore()
	if err := cacheStore.Connect(context.Background()); err != nil {
		logger.Fatal("Failed to connect to cache store", zap.Error(err))
	}
	defer cacheStore.Close()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize utilities
	validationUtil := util.NewValidationUtil()
	notificationService := util.NewNotificationService()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// Initialize the token service
	tokenService, err := token.NewService(
		config.GetString("auth.jwtSecret"),
		config.GetDuration("auth.accessTokenTTL"),
		config.GetDuration("auth.refreshTokenTTL"),
		cacheStore,
	)
	if err != nil {
		logger.Fatal("Failed to initialize token service", zap.Error(err))
	}

	// Initialize DAOs
	userDAO := dao.NewUserDAO(driver, auditService)
	projectDAO := dao.NewProjectDAO(driver, auditService)
	taskDAO := dao.NewTaskDAO(driver, auditService)

	// Initialize the access decision cache over the membership store
	membershipStore := dao.NewMembershipStore(projectDAO, taskDAO)
	accessCache := access.NewCache(
		cacheStore,
		membershipStore,
		config.GetDuration("cache.projectTTL"),
		config.GetDuration("cache.taskTTL"),
	)

	// Initialize services
	services, err := service.InitializeServices(
		userDAO,
		projectDAO,
		taskDAO,
		tokenService,
		accessCache,
		cacheStore,
		validationUtil,
		notificationService,
		eventBus,
	)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// Initialize controllers and middleware
	controllers := controller.InitializeControllers(services)
	authMiddleware := middleware.NewAuthMiddleware(tokenService, userDAO)
	gate := middleware.NewPermissionGate(accessCache, projectDAO)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(
		controllers,
		authMiddleware,
		gate,
		cacheStore,
		config.GetInt("ratelimit.requests"),
		config.GetDuration("ratelimit.window"),
	)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
