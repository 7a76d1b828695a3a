package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/farmgate/marketstock/internal/config"
	kafkax "github.com/farmgate/marketstock/internal/kafka"
	"github.com/farmgate/marketstock/internal/market"
	"github.com/farmgate/marketstock/internal/postgres"
	"github.com/farmgate/marketstock/internal/redisx"
	"github.com/farmgate/marketstock/internal/supply"
	"github.com/joho/godotenv"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer for line-added confirmations
	pAdded := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicStockLineAdded, 1024)
	pAdded.Start(ctx)

	svc := &supply.Service{
		Stock:       &market.PgStore{DB: db},
		Redis:       rdb,
		Producer:    pAdded,
		ServiceName: cfg.ServiceName + "-supply",
	}

	group := getenv("SUPPLY_GROUP", "supply-worker")
	workers := mustAtoi(os.Getenv("SUPPLY_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, market.TopicSupplyApproved, workers)

	go func() {
		log.Printf("supply consumer started: group=%s topic=%s workers=%d", group, market.TopicSupplyApproved, workers)
		if err := cons.Start(ctx, svc.HandleSupplyApproved); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pAdded.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
