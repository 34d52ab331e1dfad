package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	// 为原生Redis客户端添加别名，解决命名冲突
	goredis "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"

	// 为redsync的redis接口包添加别名，避免冲突
	goredisadapter "github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"go.uber.org/zap"
)

// RedisClient 全局Redis客户端
var RedisClient *goredis.Client

// Redisync 全局RedSync实例
var Redisync *redsync.Redsync

// EngineLeaseKey 引擎单写者租约键
const EngineLeaseKey = "lock:nft_auction:engine"

// InitRedis 初始化Redis客户端与RedSync（需在程序启动时调用）
func InitRedis(addr, password string, db int) error {
	RedisClient = goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	// 校验Redis连接可用性
	if err := RedisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	adapterPool := goredisadapter.NewPool(RedisClient)
	Redisync = redsync.New(adapterPool)
	return nil
}

// EngineLease 引擎租约：同一数据库同时只允许一个引擎进程写入
type EngineLease struct {
	mutex *redsync.Mutex
	ttl   time.Duration
	stop  chan struct{}
	done  chan struct{}
}

// AcquireEngineLease 获取租约并在后台按ttl/3续期；续期失败时调用onLost
func AcquireEngineLease(ctx context.Context, ttl time.Duration, onLost func(error)) (*EngineLease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("engine lease ttl must be positive, got %s", ttl)
	}
	if Redisync == nil {
		return nil, errors.New("redsync not initialized")
	}

	mutex := Redisync.NewMutex(EngineLeaseKey,
		redsync.WithExpiry(ttl),
		redsync.WithTries(3),
		redsync.WithRetryDelay(500*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("engine lease held by another process: %w", err)
	}

	l := &EngineLease{mutex: mutex, ttl: ttl, stop: make(chan struct{}), done: make(chan struct{})}
	go l.keepAlive(onLost)
	Logger.Info("已获取引擎租约", zap.Duration("ttl", ttl))
	return l, nil
}

func (l *EngineLease) keepAlive(onLost func(error)) {
	defer close(l.done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ok, err := l.mutex.ExtendContext(context.Background())
			if err == nil && !ok {
				err = errors.New("lease extension rejected")
			}
			if err != nil {
				Logger.Error("引擎租约续期失败", zap.Error(err))
				if onLost != nil {
					onLost(err)
				}
				return
			}
		}
	}
}

// Release 停止续期并释放租约
func (l *EngineLease) Release() error {
	close(l.stop)
	<-l.done

	ok, err := l.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("redsync unlock failed: %w", err)
	}
	if !ok {
		return errors.New("lease has expired or not held")
	}
	return nil
}
