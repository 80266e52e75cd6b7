package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chachabrian/propnest-backend/internal/config"
	"github.com/chachabrian/propnest-backend/internal/database"
	"github.com/chachabrian/propnest-backend/internal/handlers"
	"github.com/chachabrian/propnest-backend/internal/logging"
	"github.com/chachabrian/propnest-backend/internal/middleware"
	"github.com/chachabrian/propnest-backend/internal/routes"
	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	fixtureKeyID     = "rzp_test_fixture"
	fixtureKeySecret = "fixture_secret"
)

func main() {
	cfg, err := config.Load()
	if cfg == nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("Configuration loaded with warnings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence
	var s *store.Store
	switch cfg.DataMode {
	case config.DataModeFixture:
		s, _ = store.NewFixture()
		if err := store.Seed(ctx, s); err != nil {
			log.WithError(err).Fatal("Failed to seed fixture data")
		}
		log.Warn("Running in fixture mode: data is in memory and payments are simulated")
	default:
		db, err := database.InitDB(cfg.DB, cfg.IsProduction())
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize database")
		}
		s = store.NewGorm(db)
	}

	if cfg.Mongo.ChatStore == config.ChatStoreMongo {
		chats, err := store.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer chats.Close(context.Background())
		if err := chats.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Fatal("Failed to create chat indexes")
		}
		s.Chats = chats
		s.Messages = chats
		log.Info("Chat history stored in MongoDB")
	}

	// Payment gateway
	var gateway services.Gateway
	payCfg := cfg.Payment
	if cfg.DataMode == config.DataModeFixture {
		gateway = services.FixtureGateway{}
		if payCfg.KeyID == "" {
			payCfg.KeyID = fixtureKeyID
		}
		if payCfg.KeySecret == "" {
			payCfg.KeySecret = fixtureKeySecret
		}
	} else {
		gateway = services.NewRazorpayGateway(payCfg, log)
	}

	// Presence relay, shared across instances when Redis is configured
	relay := services.NewRelay(services.NewMemoryPresence(), s.Messages, s.Chats, log)
	if cfg.Redis.URL != "" {
		client, err := services.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize Redis")
		}
		defer client.Close()
		directory := services.NewRedisDirectory(client, log)
		relay.WithDirectory(directory)
		if err := directory.Subscribe(ctx, relay.DeliverLocal); err != nil {
			log.WithError(err).Fatal("Failed to subscribe to relay channel")
		}
		log.WithField("instance", directory.InstanceID()).Info("Presence shared through Redis")
	}

	// Notifications
	mailer := utils.NewMailer(cfg.Email.From, cfg.Email.Password, cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.CompanyName, cfg.BaseURL)
	notifiers := services.MultiNotifier{relay, services.NewEmailNotifier(s.Users, mailer)}
	fcm, err := services.InitFirebase(ctx, cfg.Firebase.ServiceAccountPath)
	switch {
	case err != nil:
		log.WithError(err).Warn("Firebase initialization failed, push notifications disabled")
	case fcm != nil:
		notifiers = append(notifiers, services.NewFCMNotifier(s.Users, fcm, log))
	}
	relay.WithNotifier(notifiers)

	images, err := services.NewImageStore(cfg.Storage, cfg.BaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	tokens := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	authLimiter := middleware.NewLimiterStore(cfg.Limits.AuthPerMinute, cfg.Limits.AuthBurst, 5*time.Minute)
	defer authLimiter.Stop()

	deps := routes.Deps{
		Tokens:      tokens,
		AuthLimiter: authLimiter,
		DataMode:    string(cfg.DataMode),
		Auth:        services.NewAuthService(s, tokens, mailer, cfg.IsProduction(), log),
		Properties:  services.NewPropertyService(s, images, log),
		Bookings:    services.NewBookingService(s, notifiers, log),
		Payments:    services.NewPaymentService(s, gateway, payCfg.KeyID, payCfg.KeySecret, payCfg.Currency, notifiers, log),
		Chats:       services.NewChatService(s, relay),
		Relay:       relay,
		Hub:         services.NewHub(relay, cfg.CORSOrigins, cfg.IsProduction(), log),
	}

	if err := handlers.RegisterValidators(); err != nil {
		log.WithError(err).Fatal("Failed to register validators")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(
		cors.New(corsConfig),
		middleware.RequestLogger(log),
		middleware.Recovery(log),
		middleware.ErrorHandler(log, cfg.IsProduction()),
	)

	if local, ok := images.(*services.LocalImageStore); ok {
		r.Static("/uploads", local.Dir())
	}

	routes.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "mode": cfg.DataMode}).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server exited")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}
}
