package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/users-api/webserver/internal/config"
	"github.com/users-api/webserver/internal/log"
	"github.com/users-api/webserver/internal/models/user"
	"github.com/users-api/webserver/internal/services"
	"github.com/users-api/webserver/internal/web"
)

func main() {
	// Load configuration, .env first if present
	cfg, err := config.Load(".env")
	if err != nil {
		panic(fmt.Sprintf("Error loading configuration: %s", err))
	}

	// Create webserver logger
	logger, err := log.NewLogger(log.Options{
		Development: cfg.LogDevelopment,
		Debug:       cfg.LogDebug,
		FilePath:    cfg.LogFile,
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Create a MongoDB client. Nothing can be served without it, so any failure here is fatal.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoConnectTimeout)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		cancel()
		logger.Fatal("Error creating MongoDB client: ", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		cancel()
		logger.Fatal("Error connecting to MongoDB: ", err)
	}
	cancel()
	logger.Infof("Connected to MongoDB, using %s.%s", cfg.MongoDatabase, cfg.MongoCollection)

	userManager := user.NewUserManager(client, cfg.MongoDatabase, cfg.MongoCollection, logger)

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), cfg.MongoConnectTimeout)
	if err := userManager.EnsureIndexes(indexCtx); err != nil {
		logger.Warnw("Could not ensure indexes", "error", err)
	}
	cancelIndex()

	// User events are optional
	var events services.EventPublisher = services.NopPublisher{}
	if cfg.EventsEnabled() {
		publisher, err := services.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsExchange, 15*time.Second, logger)
		if err != nil {
			logger.Warnw("User events disabled, RabbitMQ unavailable", "error", err)
		} else {
			events = publisher
		}
	}

	server := web.NewWebServer(userManager, events, logger, web.Options{
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(cfg.Addr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Errorw("Web server stopped", "error", err)
		}
	case sig := <-quit:
		logger.Infof("Received %s, shutting down", sig)
		if err := server.Shutdown(cfg.ShutdownTimeout); err != nil {
			logger.Errorw("Error shutting down web server", "error", err)
		}
	}

	if err := events.Close(); err != nil {
		logger.Errorw("Error closing event publisher", "error", err)
	}

	disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDisconnect()
	if err := client.Disconnect(disconnectCtx); err != nil {
		logger.Errorw("Error disconnecting from MongoDB", "error", err)
	}
	logger.Info("Shutdown complete")
}
