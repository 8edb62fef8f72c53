// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"compatlab-service/internal/config"
	"compatlab-service/internal/db"
	analysisHandler "compatlab-service/internal/handlers/analysis"
	authHandler "compatlab-service/internal/handlers/auth"
	billingHandler "compatlab-service/internal/handlers/billing"
	creditHandler "compatlab-service/internal/handlers/credit"
	dashboardHandler "compatlab-service/internal/handlers/dashboard"
	planHandler "compatlab-service/internal/handlers/plan"
	subscriptionHandler "compatlab-service/internal/handlers/subscription"
	sysconfigHandler "compatlab-service/internal/handlers/sysconfig"
	webhookHandler "compatlab-service/internal/handlers/webhook"
	"compatlab-service/internal/middleware"
	"compatlab-service/internal/pkg/cache"
	"compatlab-service/internal/pkg/jwt"
	"compatlab-service/internal/repository/postgres"
	analysisService "compatlab-service/internal/service/analysis"
	authService "compatlab-service/internal/service/auth"
	billingService "compatlab-service/internal/service/billing"
	dashboardService "compatlab-service/internal/service/dashboard"
	"compatlab-service/internal/service/email"
	ledgerService "compatlab-service/internal/service/ledger"
	subscriptionService "compatlab-service/internal/service/subscription"
	sysconfigService "compatlab-service/internal/service/sysconfig"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	notifications *email.Queue
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.NewPgxPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	configCache := cache.NewConfigCache(redisClient)

	// ----- JWT Manager -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}

	// ----- Email -----
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)
	s.notifications = email.NewQueue(emailSender, logger)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	userRepo := postgres.NewUserRepository(pool)
	planRepo := postgres.NewPlanRepository(pool)
	subRepo := postgres.NewSubscriptionRepository(pool)
	packetRepo := postgres.NewCreditPacketRepository(pool)
	configRepo := postgres.NewConfigRepository(pool)
	eventRepo := postgres.NewStripeEventRepository(pool)
	purchaseRepo := postgres.NewPurchaseRepository(pool)
	auditRepo := postgres.NewAuditLogRepository(pool)
	analysisRepo := postgres.NewAnalysisRepository(pool)
	dashRepo := postgres.NewDashboardRepository(pool)

	// ----- Stripe -----
	gateway := billingService.NewStripeGateway(s.cfg.StripeSecretKey)

	// ----- Services -----
	ledgerSvc := ledgerService.NewLedgerService(packetRepo, userRepo, configRepo, auditRepo, configCache, dbWrapper, logger)
	authSvc := authService.NewAuthService(userRepo, jwtManager, ledgerSvc, logger)
	planSvc := subscriptionService.NewPlanService(planRepo, logger)
	subSvc := subscriptionService.NewSubscriptionService(subRepo, planRepo, userRepo, auditRepo, gateway, ledgerSvc, s.notifications, dbWrapper, logger)
	checkoutSvc := billingService.NewCheckoutService(gateway, userRepo, purchaseRepo, packetRepo, ledgerSvc, dbWrapper, logger)
	webhookSvc := billingService.NewWebhookService(
		eventRepo, userRepo, subRepo, planRepo, packetRepo, purchaseRepo, auditRepo,
		ledgerSvc, s.notifications, dbWrapper, logger, s.cfg.StripeWebhookSecret,
	)
	analysisSvc := analysisService.NewAnalysisService(analysisRepo, userRepo, subRepo, planRepo, ledgerSvc, s.notifications, dbWrapper, logger)
	configSvc := sysconfigService.NewConfigService(configRepo, configCache, logger)
	dashSvc := dashboardService.NewDashboardService(dashRepo, userRepo, subRepo, planRepo, ledgerSvc, logger)

	// ----- Handlers -----
	handlers := &Handlers{
		Auth:         authHandler.NewAuthHandler(authSvc),
		Credit:       creditHandler.NewCreditHandler(ledgerSvc),
		Plan:         planHandler.NewPlanHandler(planSvc),
		Subscription: subscriptionHandler.NewSubscriptionHandler(subSvc),
		Billing:      billingHandler.NewBillingHandler(checkoutSvc),
		Webhook:      webhookHandler.NewWebhookHandler(webhookSvc),
		Analysis:     analysisHandler.NewAnalysisHandler(analysisSvc),
		Config:       sysconfigHandler.NewConfigHandler(configSvc),
		Dashboard:    dashboardHandler.NewDashboardHandler(dashSvc),

		AuthMW: middleware.Auth(jwtManager, authSvc),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.CORS(),
	)

	SetupRouter(s.engine, handlers)

	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown drains the notification queue.
func (s *Server) Shutdown() {
	if s.notifications != nil {
		s.notifications.Close()
	}
}
