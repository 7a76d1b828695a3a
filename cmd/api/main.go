package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farmgate/marketstock/internal/cart"
	"github.com/farmgate/marketstock/internal/config"
	"github.com/farmgate/marketstock/internal/httpx"
	kafkax "github.com/farmgate/marketstock/internal/kafka"
	"github.com/farmgate/marketstock/internal/market"
	"github.com/farmgate/marketstock/internal/postgres"
	"github.com/farmgate/marketstock/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderPlaced, 1024)
	pPlaced.Start(ctx)
	pCancel := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderCancelled, 1024)
	pCancel.Start(ctx)
	pDepleted := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicStockDepleted, 1024)
	pDepleted.Start(ctx)

	// Stores & services
	store := &market.PgStore{DB: db}
	carts := &cart.Service{
		Stock:       store,
		Redis:       rdb,
		Producer:    pDepleted,
		ServiceName: cfg.ServiceName,
		TTL:         cfg.CartTTL,
	}
	carts.StartSweeper(ctx, time.Minute)

	router := httpx.NewRouter()
	(&httpx.StockHandler{Store: store}).Register(router)
	(&httpx.CartHandler{Carts: carts}).Register(router)
	(&httpx.OrdersHandler{
		Repo:            &market.OrdersRepo{DB: db, Stock: store},
		Carts:           carts,
		ProducerPlaced:  pPlaced,
		ProducerCancels: pCancel,
		Redis:           rdb,
		Service:         cfg.ServiceName,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel() // stops producer loops and the cart sweeper
	pPlaced.WaitClosed()
	pCancel.WaitClosed()
	pDepleted.WaitClosed()
}
