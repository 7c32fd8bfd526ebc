// Package main is the BV-RAG HTTP server entrypoint: wires C1-C12 together
// and serves spec.md §6's HTTP/WS surface, grounded on the teacher's
// cmd/server/main.go wiring order (config → log → datastores → clients →
// services → Gin engine → route tree → graceful shutdown).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bvrag/internal/admin"
	"bvrag/internal/config"
	"bvrag/internal/generation"
	"bvrag/internal/handler"
	"bvrag/internal/knowledge"
	"bvrag/internal/memory"
	"bvrag/internal/middleware"
	"bvrag/internal/pipeline"
	"bvrag/internal/retrieval"
	"bvrag/internal/utility"
	"bvrag/pkg/database"
	"bvrag/pkg/embedding"
	"bvrag/pkg/es"
	"bvrag/pkg/kafka"
	"bvrag/pkg/llm"
	"bvrag/pkg/log"
	"bvrag/pkg/storage"
	"bvrag/pkg/token"
	"bvrag/pkg/voice"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 日志
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 数据存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("Elasticsearch 初始化失败: %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 外部客户端 (C1/C2/C3/C12 之下的传输层)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	sttClient := voice.NewSTTClient(cfg.Voice)
	ttsClient := voice.NewTTSClient(cfg.Voice)
	jwtManager := token.NewJWTManager(cfg.Admin.JWTSecret, cfg.Admin.ExpireHours)

	// 5. 领域组件 (C1-C10)
	vectorClient := retrieval.NewVectorClient(embeddingClient, cfg.Elasticsearch)
	lexicalClient := retrieval.NewLexicalClient(cfg.Elasticsearch)
	graphClient := retrieval.NewGraphClient(database.DB)
	utilityStore := utility.NewStore(database.DB)
	reranker := utility.NewReranker(utilityStore, cfg.Retrieval.UtilityAlpha)
	retriever := retrieval.NewHybridRetriever(vectorClient, lexicalClient, graphClient, reranker, cfg.Retrieval)

	knowledgeIdx, err := knowledge.Load(cfg.Knowledge.Dir)
	if err != nil {
		log.Errorf("实务知识库加载失败，将在无实务知识上下文的情况下继续运行: %v", err)
		knowledgeIdx = nil
	}

	sessionStore := memory.NewStore(database.RDB, cfg.Memory)
	generator := generation.NewGenerator(llmClient)

	// 6. C11 编排器 (fire-and-forget utility update 经由 Kafka 生产者)
	orchestrator := pipeline.New(sessionStore, llmClient, cfg.Memory, retriever, knowledgeIdx, generator, kafka.ProduceUtilityUpdate)

	// 7. 后台 Kafka 消费者：EMA utility 更新的唯一写路径
	updateProcessor := utility.NewUpdateProcessor(utilityStore)
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, updateProcessor)

	// 8. Gin 引擎与路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.ErrorHandler(), gin.Recovery())

	adminService := admin.NewService(database.DB, database.RDB, cfg.Elasticsearch)

	healthHandler := handler.NewHealthHandler()
	voiceHandler := handler.NewVoiceHandler(orchestrator, sttClient, ttsClient, cfg.MinIO.BucketName)
	searchHandler := handler.NewSearchHandler(retriever)
	regulationHandler := handler.NewRegulationHandler(graphClient)
	adminHandler := handler.NewAdminHandler(adminService, sessionStore, jwtManager, cfg.Admin.TokenHash)

	r.GET("/health", healthHandler.Check)

	apiV1 := r.Group("/api/v1")
	{
		voiceGroup := apiV1.Group("/voice")
		{
			voiceGroup.POST("/text-query", voiceHandler.TextQuery)
			voiceGroup.POST("/query", voiceHandler.Query)
			voiceGroup.POST("/tts", voiceHandler.TTS)
			voiceGroup.GET("/ws/:session_id", voiceHandler.WebSocket)
		}

		apiV1.POST("/search", searchHandler.Search)
		apiV1.GET("/regulation/:doc_id", regulationHandler.Get)

		adminGroup := apiV1.Group("/admin")
		{
			adminGroup.POST("/login", adminHandler.Login)

			authed := adminGroup.Group("/")
			authed.Use(middleware.AdminAuth(jwtManager))
			{
				authed.GET("/stats", adminHandler.Stats)
				authed.GET("/session/:session_id", adminHandler.Session)
				authed.GET("/utility-stats", adminHandler.UtilityStats)
			}
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
