package service

import (
	"context"
	"encoding/json"
	"time"

	"nft_auction/model"
	"nft_auction/utils"

	"go.uber.org/zap"
)

// Notifier 链下监听方的通知出口（尽力投递，失败不回滚状态）
type Notifier interface {
	Notify(ctx context.Context, ev model.Event) error
}

// NopNotifier 丢弃所有通知
type NopNotifier struct{}

// Notify 实现Notifier
func (NopNotifier) Notify(context.Context, model.Event) error { return nil }

// MultiNotifier 依次投递给多个Notifier
type MultiNotifier []Notifier

// Notify 实现Notifier，单个失败不影响其余
func (m MultiNotifier) Notify(ctx context.Context, ev model.Event) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AMQPNotifier 通过RabbitMQ发布通知，路由键为事件类型
type AMQPNotifier struct{}

// Notify 实现Notifier
func (AMQPNotifier) Notify(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return utils.PublishEvent(ctx, ev.ID, string(ev.Type), body)
}

// newEvent 构造带ID与时间戳的事件
func newEvent(t model.EventType, auctionID uint64, payload interface{}, now time.Time) model.Event {
	return model.Event{
		ID:        utils.NewEventID(),
		Type:      t,
		AuctionID: auctionID,
		Payload:   payload,
		Timestamp: now,
	}
}

// publish 在状态提交之后投递
func publish(ctx context.Context, n Notifier, events []model.Event) {
	for _, ev := range events {
		if err := n.Notify(ctx, ev); err != nil {
			utils.Logger.Warn("通知投递失败", zap.String("event_id", ev.ID), zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
}
