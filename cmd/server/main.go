package main

import (
	"context"
	"log"
	"time"

	"github.com/example/eventhub/internal/cache"
	"github.com/example/eventhub/internal/config"
	"github.com/example/eventhub/internal/database"
	"github.com/example/eventhub/internal/events"
	"github.com/example/eventhub/internal/routes"
	"github.com/example/eventhub/internal/services"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)
	log.Printf("Database connected (%s)", cfg.DatabaseDriver)

	var paymentOpts []services.PaymentOption

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cancel()
		if err != nil {
			log.Printf("Redis unavailable, payment history is served uncached: %v", err)
		} else {
			defer client.Close()
			paymentOpts = append(paymentOpts, services.WithHistoryCache(cache.NewRedisHistoryCache(client, cfg.HistoryCacheTTL)))
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaPaymentTopic)
		if err != nil {
			log.Printf("Kafka unavailable, payment events are not published: %v", err)
		} else {
			defer producer.Close()
			paymentOpts = append(paymentOpts, services.WithPublisher(producer))
		}
	}

	if telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat); telegram.Enabled() {
		paymentOpts = append(paymentOpts, services.WithNotifier(telegram))
	}

	app := routes.NewApp(db, cfg, paymentOpts...)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
