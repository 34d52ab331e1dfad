package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"nft_auction/model"
	"nft_auction/service"
	"nft_auction/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EndingIndexKey 未结算拍卖按结束时间排序的ZSet
const EndingIndexKey = "auction:ending"

// AuctionKey 拍卖快照Key
func AuctionKey(id uint64) string {
	return fmt.Sprintf("auction:%d", id)
}

// RedisProjection 拍卖读模型：快照 + 到期索引，供链下系统与结算器读取
type RedisProjection struct {
	rdb *redis.Client
}

// NewRedisProjection 创建投影
func NewRedisProjection(rdb *redis.Client) *RedisProjection {
	return &RedisProjection{rdb: rdb}
}

// Project 写入拍卖快照并维护到期索引（终态拍卖移出索引）
func (p *RedisProjection) Project(ctx context.Context, auctions []model.Auction) error {
	if len(auctions) == 0 {
		return nil
	}
	pipe := p.rdb.TxPipeline()
	for i := range auctions {
		a := &auctions[i]
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		member := strconv.FormatUint(a.ID, 10)
		pipe.Set(ctx, AuctionKey(a.ID), data, 0)
		if a.State.Finalized() {
			pipe.ZRem(ctx, EndingIndexKey, member)
		} else {
			pipe.ZAdd(ctx, EndingIndexKey, &redis.Z{Score: float64(a.EndTime.Unix()), Member: member})
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// DueAuctions 结束时间不晚于now的未结算拍卖ID（按结束时间升序）
func (p *RedisProjection) DueAuctions(ctx context.Context, now time.Time, limit int64) ([]uint64, error) {
	members, err := p.rdb.ZRangeByScore(ctx, EndingIndexKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now.Unix(), 10),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CachedAuction 读取拍卖快照；不存在时返回redis.Nil
func (p *RedisProjection) CachedAuction(ctx context.Context, id uint64) (*model.Auction, error) {
	data, err := p.rdb.Get(ctx, AuctionKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var a model.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ProjectingStore 在提交成功后刷新Redis投影；投影失败只记日志
type ProjectingStore struct {
	service.Store
	proj *RedisProjection
}

// NewProjectingStore 包装存储
func NewProjectingStore(inner service.Store, proj *RedisProjection) *ProjectingStore {
	return &ProjectingStore{Store: inner, proj: proj}
}

// Load 加载后重建投影
func (s *ProjectingStore) Load(ctx context.Context) (*service.Snapshot, error) {
	snap, err := s.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.proj.Project(ctx, snap.Auctions); err != nil {
		utils.Logger.Warn("重建Redis投影失败", zap.Error(err))
	}
	return snap, nil
}

// Commit 实现service.Store
func (s *ProjectingStore) Commit(ctx context.Context, cs *service.ChangeSet) error {
	if err := s.Store.Commit(ctx, cs); err != nil {
		return err
	}
	if err := s.proj.Project(ctx, cs.Auctions); err != nil {
		utils.Logger.Warn("刷新Redis投影失败", zap.Error(err))
	}
	return nil
}
