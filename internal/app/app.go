// Package app wires repositories, services and handlers into a runnable server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"commissionledger/internal/config"
	"commissionledger/internal/events"
	"commissionledger/internal/gocardless"
	"commissionledger/internal/handler"
	"commissionledger/internal/logger"
	"commissionledger/internal/metrics"
	"commissionledger/internal/middleware"
	"commissionledger/internal/repository"
	"commissionledger/internal/scheduler"
	"commissionledger/internal/service"
	"commissionledger/internal/websocket"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Services groups every domain service. The CLI uses them without the HTTP layer.
type Services struct {
	Commissions service.CommissionService
	Ledger      service.LedgerService
	Payments    service.PaymentService
	Payees      service.PayeeService
	Invoices    service.InvoiceService
	Generator   service.InvoiceGenerator
	Webhooks    service.WebhookService
	Audit       service.AuditService
}

// Options overrides the collaborators that talk to the outside world.
type Options struct {
	Metrics *metrics.LedgerMetrics
	// Provider is nil when no access token is configured; payments then fall back to bank transfer.
	Provider service.PaymentProvider
	// Transport receives outbox events in addition to the websocket hub.
	Transport events.Publisher
}

type App struct {
	cfg       *config.Config
	db        *gorm.DB
	metrics   *metrics.LedgerMetrics
	hub       *websocket.Hub
	publisher events.Publisher
	relay     *events.Relay
	log       zerolog.Logger

	Services Services
}

// New builds the dependency graph (Repository -> Service -> Handler).
func New(cfg *config.Config, db *gorm.DB, opts Options) (*App, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	if opts.Transport == nil {
		opts.Transport = events.NewLogPublisher(logger.WithComponent("outbox"))
	}

	settings := service.SettingsFromConfig(cfg)
	m := opts.Metrics

	txManager := repository.NewTransactionManager(db)
	payeeRepo := repository.NewPayeeRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	outboxRepo := repository.NewOutboxRepository(db, node)
	jobRepo := repository.NewJobRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	auditService := service.NewAuditService(repository.NewAuditRepository(db))
	sequencer := service.NewSequencer(repository.NewSequenceRepository(db), txManager)
	commissionService := service.NewCommissionService(commissionRepo, payeeRepo, txManager, settings)
	ledgerService := service.NewLedgerService(ledgerRepo, sequencer, txManager, settings, m, logger.WithComponent("ledger"))
	paymentService := service.NewPaymentService(opts.Provider, invoiceRepo, payeeRepo, outboxRepo, auditService, txManager, settings, m, logger.WithComponent("payments"))

	hub := websocket.NewHub()
	publisher := events.Fanout(opts.Transport, hub)

	a := &App{
		cfg:       cfg,
		db:        db,
		metrics:   m,
		hub:       hub,
		publisher: publisher,
		relay:     events.NewRelay(outboxRepo, publisher, m, logger.WithComponent("relay")),
		log:       logger.WithComponent("app"),
		Services: Services{
			Commissions: commissionService,
			Ledger:      ledgerService,
			Payments:    paymentService,
			Payees:      service.NewPayeeService(payeeRepo, outboxRepo, auditService, txManager),
			Invoices:    service.NewInvoiceService(invoiceRepo, ledgerRepo, outboxRepo, ledgerService, auditService, txManager),
			Audit:       auditService,
			Generator: service.NewInvoiceGenerator(service.InvoiceGeneratorDeps{
				Commissions:    commissionService,
				Ledger:         ledgerService,
				Payments:       paymentService,
				Audit:          auditService,
				Sequencer:      sequencer,
				PayeeRepo:      payeeRepo,
				InvoiceRepo:    invoiceRepo,
				OutboxRepo:     outboxRepo,
				JobRepo:        jobRepo,
				CommissionRepo: commissionRepo,
				TxManager:      txManager,
				Settings:       settings,
				Metrics:        m,
				Log:            logger.WithComponent("invoice-batch"),
			}),
			Webhooks: service.NewWebhookService(service.WebhookServiceDeps{
				Secret:         cfg.WebhookSecret,
				WebhookRepo:    webhookRepo,
				PayeeRepo:      payeeRepo,
				InvoiceRepo:    invoiceRepo,
				CommissionRepo: commissionRepo,
				OutboxRepo:     outboxRepo,
				Commissions:    commissionService,
				Ledger:         ledgerService,
				TxManager:      txManager,
				Metrics:        m,
				Log:            logger.WithComponent("webhooks"),
			}),
		},
	}
	return a, nil
}

// NewProvider returns the GoCardless client, or nil when no access token is set.
// The nil is returned as an interface so the payment service sees a missing provider.
func NewProvider(cfg *config.Config) (service.PaymentProvider, error) {
	if cfg.GoCardlessAccessToken == "" {
		return nil, nil
	}
	client, err := gocardless.NewClient(cfg.GoCardlessAccessToken, cfg.GoCardlessEnvironment, cfg.PaymentTimeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewTransport builds the outbox transport selected by OUTBOX_TRANSPORT.
func NewTransport(cfg *config.Config) (events.Publisher, error) {
	switch cfg.OutboxTransport {
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "rabbitmq":
		p, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return events.NewLogPublisher(logger.WithComponent("outbox")), nil
	}
}

// Router builds the gin engine with every route registered.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = a.cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", a.health)
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(a.hub, c, middleware.GetJWTSecret(), middleware.RoleAdmin, middleware.RoleAccountant)
	})

	s := a.Services
	api := router.Group("")
	handler.NewBatchHandler(s.Generator, a.cfg.CronSecret).RegisterRoutes(api)
	handler.NewWebhookHandler(s.Webhooks).RegisterRoutes(api)
	handler.NewCommissionHandler(s.Commissions).RegisterRoutes(api)
	handler.NewPayeeHandler(s.Payees, s.Payments).RegisterRoutes(api)
	handler.NewInvoiceHandler(s.Invoices).RegisterRoutes(api)
	handler.NewLedgerHandler(s.Ledger).RegisterRoutes(api)
	handler.NewAuditHandler(s.Audit).RegisterRoutes(api)

	return router
}

func (a *App) health(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// RelayOnce publishes one batch of pending outbox events.
func (a *App) RelayOnce(ctx context.Context) (int, error) {
	return a.relay.RunOnce(ctx)
}

// Serve runs the HTTP server, the websocket hub, the outbox relay and, when
// enabled, the monthly invoice schedule until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run()
		return nil
	})
	g.Go(func() error {
		a.relay.Start(gctx, a.cfg.OutboxPollInterval)
		return nil
	})
	if a.cfg.SchedulerEnabled {
		sched, err := scheduler.New(a.cfg.InvoiceSchedule, a.Services.Generator, logger.WithComponent("scheduler"))
		if err != nil {
			return err
		}
		sched.Start()
		g.Go(func() error {
			<-gctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}
	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		_ = a.publisher.Close()
		return err
	})

	return g.Wait()
}

// Close releases the publishers. Serve closes them itself on shutdown.
func (a *App) Close() error {
	return a.publisher.Close()
}
