// Example order poller for the Element SDK Go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	elementorder "github.com/kaifufi/element-order-sdk-go"
	"github.com/kaifufi/element-order-sdk-go/store"
	"github.com/sirupsen/logrus"
)

const pollInterval = 30 * time.Second

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	log := logger.WithField("service", "element-poller")

	config, err := elementorder.LoadClientConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(config.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log.WithField("config", config.String()).Info("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := elementorder.NewMetrics()
	opts := []elementorder.Option{
		elementorder.WithLogger(log),
		elementorder.WithMetrics(metrics),
	}

	var queue *store.OrderQueue
	if config.DatabaseURL != "" {
		queue, err = store.NewOrderQueue(ctx, config.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		defer queue.Close()
		if err := queue.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("failed to migrate database")
		}
		opts = append(opts, elementorder.WithOrderSink(queue))
	}

	client, err := elementorder.NewClient(config, opts...)
	if err != nil {
		log.WithError(err).Fatal("failed to create client")
	}
	defer client.Close()

	server := &http.Server{Addr: getEnv("METRICS_ADDR", ":9102"), Handler: metrics.Handler()}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	defer server.Close()

	if getEnv("ELEMENT_STREAM", "") == "true" {
		stream := client.NewOrderStream(ctx, elementorder.WSConfig{})
		if err := stream.Connect(ctx); err != nil {
			log.WithError(err).Fatal("failed to connect order stream")
		}
		defer stream.Disconnect()
		if err := stream.SubscribeListings(client.Network().APIChain, ""); err != nil {
			log.WithError(err).Warn("failed to subscribe to listings")
		}
		if err := stream.SubscribeOffers(client.Network().APIChain, ""); err != nil {
			log.WithError(err).Warn("failed to subscribe to offers")
		}
	}

	if config.RPCURL != "" && getEnv("ELEMENT_WATCH_EVENTS", "") == "true" {
		go func() {
			err := client.WatchEvents(ctx, func(event *elementorder.ExchangeEvent) {
				if event.Filled == nil || queue == nil {
					return
				}
				if _, err := queue.Delete(ctx, event.Filled.OrderID); err != nil {
					log.WithError(err).WithField("order_id", event.Filled.OrderID).Warn("failed to drop filled order")
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("event watcher stopped")
			}
		}()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		for _, side := range []elementorder.OrderSide{elementorder.OrderSideSell, elementorder.OrderSideBuy} {
			result, err := client.FetchOrders(ctx, side, 0)
			if err != nil {
				log.WithError(err).WithField("side", side.String()).Warn("fetch failed")
				continue
			}
			log.WithFields(logrus.Fields{
				"side":     side.String(),
				"accepted": len(result.Accepted),
				"cursor":   result.Cursor,
			}).Debug("poll complete")
		}

		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
