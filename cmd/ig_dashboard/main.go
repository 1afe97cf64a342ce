package main

import (
	"context"
	"flag"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/api"
	"ig-dashboard/internal/ig_dashboard/app"
	"ig-dashboard/internal/ig_dashboard/helper"
	"ig-dashboard/internal/ig_dashboard/scheduler"
	"ig-dashboard/internal/ig_dashboard/secrets"
	"ig-dashboard/internal/middleware/logger"
	"ig-dashboard/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/app.yaml", "path to the app config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Server.Debug)
	if err != nil {
		panic(err)
	}

	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	ctx := context.Background()

	log.Info("Starting Instagram Analytics Dashboard...", zap.String("config", *configPath))

	// 1) 托管 Mongo 密钥库（可选，连不上时只用其他来源）
	var hosted *mongo.Collection
	if cfg.Hosted.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		stores, err := helper.ConnectMongo(connectCtx, cfg.Hosted.Mongo)
		cancel()
		if err != nil {
			log.Warn("Hosted secret store unavailable", zap.Error(err))
		} else {
			hosted = stores.Secrets
			defer func() {
				_ = stores.Close(context.Background())
			}()
		}
	}

	// 2) 解析凭据并构造客户端
	resolver := secrets.NewResolver(log, app.BuildSources(cfg, hosted)...)
	a := app.New(log, cfg, resolver)
	a.Reload(ctx)

	if st := a.Status(); st.SetupNeeded {
		log.Warn("Required credentials missing, POST /secrets to configure them",
			zap.Strings("missing", st.Missing),
		)
	}

	// 3) 托管密钥定时刷新（refreshInterval 为 0 时不启动）
	worker := &scheduler.Worker{
		Log:      log,
		Interval: cfg.Hosted.RefreshInterval,
		Reload:   func(ctx context.Context) { a.Reload(ctx) },
	}
	go worker.Run(ctx)

	// 4) 起 HTTP API
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(log, a, cfg.Server.AllowOrigins)
	r := srv.Router()
	_ = r.SetTrustedProxies(nil)
	log.Info("Dashboard API is running", zap.String("address", cfg.Server.Address))
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatal("HTTP server stopped", zap.Error(err))
	}
}
