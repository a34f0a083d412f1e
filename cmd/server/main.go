// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ks-chat-go/internal/config"
	"ks-chat-go/internal/handler"
	"ks-chat-go/internal/middleware"
	"ks-chat-go/internal/repository"
	"ks-chat-go/internal/service"
	"ks-chat-go/pkg/database"
	"ks-chat-go/pkg/llm"
	"ks-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库
	database.InitMySQL(cfg.Database.MySQL.DSN)

	// 4. 初始化 Repository
	profileRepo := repository.NewProfileRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	// 提供方客户端进程级创建一次，生命周期与进程一致
	llmClient := llm.NewClient(cfg.LLM)
	chatService := service.NewChatService(llmClient, profileRepo, conversationRepo, messageRepo)
	conversationService := service.NewConversationService(conversationRepo, messageRepo)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	api := r.Group("/api")
	{
		api.POST("/chat", handler.NewChatHandler(chatService).Handle)

		conversations := api.Group("/conversations")
		{
			conversations.GET("", handler.NewConversationHandler(conversationService).ListConversations)
			conversations.GET("/:id/messages", handler.NewConversationHandler(conversationService).ListMessages)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
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

	// 等待中断信号以实现优雅停机
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
