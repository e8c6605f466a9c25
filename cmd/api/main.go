// cmd/api/main.go
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"usermgmt/internal/config"
	"usermgmt/internal/db"
	"usermgmt/internal/db/migrations"
	"usermgmt/internal/identity"
	"usermgmt/internal/logger"
	"usermgmt/internal/notify"
	"usermgmt/internal/provisioner"
	"usermgmt/internal/reset"
	"usermgmt/internal/routes"
	"usermgmt/internal/store"
)

func main() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	_ = godotenv.Load(".env." + env)

	logger.Init(env)
	defer logger.Sync()
	log := logger.L()

	cfg := config.Load()

	// Token store backend
	var (
		tokens store.TokenStore
		sqlDB  *sql.DB
	)
	switch cfg.StoreBackend {
	case "memory":
		tokens = store.NewMemoryStore(cfg.ResetTokenTTL)

	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		cancel()
		if err != nil {
			log.Fatal("failed to connect to mongo", zap.Error(err))
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		mongoStore := store.NewMongoStore(client.Database(cfg.MongoDatabase), cfg.ResetTokenTTL)
		if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
			log.Fatal("failed to ensure mongo indexes", zap.Error(err))
		}
		tokens = mongoStore

	default: // postgres
		if err := db.CreateDatabaseIfNotExists(cfg.DatabaseURL); err != nil {
			log.Fatal("failed to ensure database exists", zap.Error(err))
		}
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer database.Close()

		if err := migrations.RunMigrations(database.DB); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		sqlDB = database.DB
		tokens = store.NewPostgresStore(sqlDB, cfg.ResetTokenTTL)
	}

	// Identity provider client
	client := identity.NewClient(identity.Config{
		Domain:       cfg.Auth0Domain,
		ClientID:     cfg.Auth0ClientID,
		ClientSecret: cfg.Auth0ClientSecret,
		Audience:     cfg.Auth0Audience,
	})

	// Notification dispatcher
	var dispatcher notify.Dispatcher
	if cfg.Mailer == "ses" {
		sesCfg, err := config.NewSESConfig(cfg.SESFrom)
		if err != nil {
			log.Fatal("failed to configure SES", zap.Error(err))
		}
		dispatcher = &notify.SESDispatcher{Client: sesCfg.Client, From: sesCfg.From}
	} else {
		dispatcher = &notify.SMTPDispatcher{
			Host:   cfg.SMTPHost,
			Port:   cfg.SMTPPort,
			User:   cfg.SMTPUser,
			Pass:   cfg.SMTPPassword,
			From:   cfg.SMTPFrom,
			UseTLS: cfg.SMTPUseTLS,
		}
	}

	engine := reset.NewEngine(tokens, client, dispatcher, cfg.ResetLinkBase)
	prov := provisioner.New(client, cfg.Auth0Connection, cfg.ImportConcurrency)

	router := routes.SetupRoutes(sqlDB, engine, prov)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exiting")
}
