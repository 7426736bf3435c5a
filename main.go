package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streadway/amqp"

	"dryfruits/internal/app"
	"dryfruits/internal/config"
	"dryfruits/internal/repositories"
	"dryfruits/internal/services"
	"dryfruits/pkg/blobstore"
	"dryfruits/pkg/metrics"
	"dryfruits/pkg/nimbuspost"
	"dryfruits/pkg/rabbitmq"
	"dryfruits/pkg/razorpay"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Database ---
	db, err := repositories.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := repositories.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- RabbitMQ ---
	var publisher services.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		publisher = mqClient

		log.Println("Starting RabbitMQ consumer for order events...")
		if err := mqClient.ConsumeOrderEvents(logOrderEvent); err != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", err)
		}
	} else {
		log.Println("RABBITMQ_URL is empty, order events are not published")
	}

	// --- Blob storage ---
	blobs, err := newBlobStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// --- Application ---
	storefront, err := app.New(cfg, app.Deps{
		DB:      db,
		Gateway: razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Carrier: nimbuspost.NewClient(nimbuspost.Config{
			BaseURL:   cfg.NimbusBaseURL,
			Email:     cfg.NimbusEmail,
			Password:  cfg.NimbusPassword,
			Warehouse: cfg.NimbusWarehouse,
			Timeout:   cfg.CarrierTimeout,
		}),
		Blobs:     blobs,
		Publisher: publisher,
		Metrics:   metrics.New("dryfruits"),
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := storefront.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := storefront.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Server gracefully stopped")
}

func newBlobStore(cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobBackend == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return blobstore.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
	}
	if err := os.MkdirAll(cfg.BlobLocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.BlobLocalDir, err)
	}
	return blobstore.NewLocalStore(cfg.BlobLocalDir, cfg.BlobPublicURL), nil
}

// logOrderEvent records an order event taken off the queue. Bodies that are
// not order events are rejected so they are dropped instead of redelivered.
func logOrderEvent(msg amqp.Delivery) error {
	var event services.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return fmt.Errorf("malformed %s event: %w", msg.RoutingKey, err)
	}
	if event.OrderID == "" {
		return fmt.Errorf("%s event without order id", msg.RoutingKey)
	}
	log.Printf("Received %s (Tag: %d): order %s is %s, amount %s", msg.RoutingKey, msg.DeliveryTag, event.OrderID, event.Status, event.Amount)
	return nil
}
