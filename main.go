package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nft_auction/config"
	"nft_auction/contract"
	"nft_auction/dao"
	"nft_auction/handler"
	"nft_auction/service"
	"nft_auction/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. 初始化配置
	if err := config.InitConfig(); err != nil {
		zap.L().Fatal("初始化配置失败", zap.Error(err))
	}
	cfg := config.GlobalConfig

	// 2. 初始化日志
	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		zap.L().Fatal("初始化日志失败", zap.Error(err))
	}
	defer utils.Logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化MySQL
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
	if err != nil {
		utils.Logger.Fatal("连接MySQL失败", zap.Error(err))
	}
	if err := dao.AutoMigrate(db); err != nil {
		utils.Logger.Fatal("迁移表结构失败", zap.Error(err))
	}

	// 4. 初始化Redis并获取引擎租约（同一数据库只允许一个引擎写入）
	if err := utils.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		utils.Logger.Fatal("初始化Redis失败", zap.Error(err))
	}
	lease, err := utils.AcquireEngineLease(ctx, cfg.EngineLeaseTTL, func(err error) {
		utils.Logger.Error("引擎租约丢失，停止服务", zap.Error(err))
		stop()
	})
	if err != nil {
		utils.Logger.Fatal("获取引擎租约失败", zap.Error(err))
	}
	defer func() {
		if err := lease.Release(); err != nil {
			utils.Logger.Warn("释放引擎租约失败", zap.Error(err))
		}
	}()

	// 5. 初始化RabbitMQ
	if err := utils.InitRabbitMQ(cfg.RabbitMQURL); err != nil {
		utils.Logger.Fatal("初始化RabbitMQ失败", zap.Error(err))
	}
	defer utils.CloseRabbitMQ()

	// 6. 出款通道
	var payer service.Payer = contract.DryRunPayer{}
	if cfg.ChainRPCUrl != "" {
		ep, err := contract.NewEtherPayer(ctx, cfg.ChainRPCUrl, cfg.PayoutPrivateKey)
		if err != nil {
			utils.Logger.Fatal("初始化出款账户失败", zap.Error(err))
		}
		defer ep.Close()
		payer = ep
		utils.Logger.Info("出款账户", zap.String("from", ep.From().Hex()))
	} else {
		utils.Logger.Warn("未配置CHAIN_RPC_URL，提现不会真正转账")
	}

	// 7. 初始化引擎和处理器
	projection := dao.NewRedisProjection(utils.RedisClient)
	store := dao.NewProjectingStore(dao.NewMySQLStore(db), projection)
	hub := handler.NewStreamHub()
	defer hub.Close()

	auctionService, err := service.NewAuctionService(ctx, service.Options{
		Store:    store,
		Notifier: service.MultiNotifier{service.AMQPNotifier{}, hub},
		Payer:    payer,
		Defaults: cfg.Defaults,
	})
	if err != nil {
		utils.Logger.Fatal("初始化拍卖引擎失败", zap.Error(err))
	}

	// 8. 结算命令消费者与可选的自动结算
	settler := service.NewSettler(auctionService, projection, auctionService.Settings(ctx).Operator).
		WithDispatcher(utils.PublishSettleMsg)
	err = utils.ConsumeSettleMsg(func(auctionID uint64) error {
		return settler.Settle(context.Background(), auctionID)
	})
	if err != nil {
		utils.Logger.Fatal("启动消费者失败", zap.Error(err))
	}
	if cfg.SettleInterval > 0 {
		go settler.Run(ctx, cfg.SettleInterval)
		utils.Logger.Info("自动结算已开启", zap.Duration("interval", cfg.SettleInterval))
	}

	// 9. 启动HTTP服务（优雅关闭）
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: handler.NewRouter(auctionService, hub, cfg.RequireSignatures),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Error("启动服务失败", zap.Error(err))
			stop()
		}
	}()
	utils.Logger.Info("服务已启动", zap.String("addr", cfg.ServerPort))

	<-ctx.Done()
	utils.Logger.Info("服务正在关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("关闭服务失败", zap.Error(err))
	}
}
