package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"

	configs "github.com/avvvet/pokerclub-services/configs"
	nats "github.com/avvvet/pokerclub-services/internal/nats"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/broker"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/config"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/db"
	handlers "github.com/avvvet/pokerclub-services/internal/tablesvc/handlers"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/service"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

const SERVICE_NAME = "table"

// engine messages are load balanced across replicas in this group
const queueGroup = "tablesvc"

func init() {
	// env first so LOG_LEVEL and LOG_TO_FILE from .env reach the logger
	configs.LoadEnv(SERVICE_NAME)
	configs.CreateUniqueInstance(SERVICE_NAME)
	configs.Logging(SERVICE_NAME + "_service_" + configs.GetInstanceId())
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration: %v", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.DBUrl); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
	}

	// pg connection
	dbpool, err := db.Connect(context.Background(), cfg.DBUrl, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close(dbpool)
	log.Printf("pg connection established successfully")

	userStore := store.NewUserStore(dbpool)
	userService := service.NewUserService(userStore)

	tableStore := store.NewTableStore(dbpool)
	tableService := service.NewTableService(tableStore)

	handStore := store.NewHandStore(dbpool)
	handService := service.NewHandService(handStore)

	inviteStore := store.NewInviteStore(dbpool, quartz.NewReal())
	inviteService := service.NewInviteService(inviteStore, tableStore,
		cfg.DefaultInviteTTL, cfg.DefaultInviteMaxUses, cfg.PublicWSURL)

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+configs.GetInstanceId())
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// rules engine persistence messages
	b := broker.NewBroker(n.Conn, tableService, handService, userService, cfg.RequestTimeout)
	sub, err := b.QueueSubscribeEngine(cfg.EngineTopic, queueGroup)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to queue %v", err)
	}

	// Setup router
	r := chi.NewRouter()
	c := configs.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(configs.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(c.Handler)

	// Init handlers and routes
	h := handlers.NewHandler(inviteService, tableService, handService, userService, cfg.Port)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r, cfg.RateLimit)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := sub.Unsubscribe(); err != nil {
		log.Warnf("unsubscribe %s: %v", cfg.EngineTopic, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
