// Package main is the standalone utility-update worker: consumes the
// fire-and-forget UtilityUpdateEvent topic C11 publishes and applies the EMA
// update via C6 (spec.md §4.11 step 9), split out of cmd/server so the
// consumer can be scaled/restarted independently of the HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bvrag/internal/config"
	"bvrag/internal/utility"
	"bvrag/pkg/database"
	"bvrag/pkg/kafka"
	"bvrag/pkg/log"
)

func main() {
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	database.InitMySQL(cfg.Database.MySQL.DSN)

	store := utility.NewStore(database.DB)
	processor := utility.NewUpdateProcessor(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		kafka.StartConsumer(ctx, cfg.Kafka, processor)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭 utility 消费者...")
	cancel()
	<-done
	log.Info("utility 消费者已优雅关闭")
}
