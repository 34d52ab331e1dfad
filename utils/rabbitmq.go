package utils

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	EventExchange   = "nft_auction_events"   // 通知交换机（topic，路由键为事件类型）
	CommandExchange = "nft_auction_exchange" // 命令交换机（direct）
	SettleQueue     = "nft_auction_settle_queue"
	SettleRouteKey  = "auction.settle"
)

var RabbitMQConn *amqp.Connection
var RabbitMQChannel *amqp.Channel

// ErrRabbitMQNotReady 未初始化时发布
var ErrRabbitMQNotReady = errors.New("rabbitmq not initialized")

// InitRabbitMQ 初始化RabbitMQ
func InitRabbitMQ(url string) error {
	// 建立连接
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	RabbitMQConn = conn

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	RabbitMQChannel = ch

	// 声明交换机和队列
	return declareExchangeAndQueue()
}

// 声明通知交换机、命令交换机和结算队列
func declareExchangeAndQueue() error {
	err := RabbitMQChannel.ExchangeDeclare(
		EventExchange, // 交换机名
		"topic",       // 类型
		true,          // 持久化
		false,         // 自动删除
		false,         // 内部
		false,         // 等待
		nil,           // 参数
	)
	if err != nil {
		return err
	}

	err = RabbitMQChannel.ExchangeDeclare(CommandExchange, "direct", true, false, false, false, nil)
	if err != nil {
		return err
	}

	_, err = RabbitMQChannel.QueueDeclare(
		SettleQueue, // 队列名
		true,        // 持久化
		false,       // 自动删除
		false,       // 排他
		false,       // 等待
		nil,         // 参数
	)
	if err != nil {
		return err
	}

	return RabbitMQChannel.QueueBind(SettleQueue, SettleRouteKey, CommandExchange, false, nil)
}

// PublishEvent 发布引擎通知
func PublishEvent(ctx context.Context, messageID, routingKey string, body []byte) error {
	if RabbitMQChannel == nil {
		return ErrRabbitMQNotReady
	}
	return RabbitMQChannel.Publish(
		EventExchange, // 交换机名
		routingKey,    // 路由键
		false,         // 强制
		false,         // 立即
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			Body:         body,
			DeliveryMode: amqp.Persistent, // 持久化
			Timestamp:    time.Now(),
		},
	)
}

// PublishSettleMsg 发布结算命令（链下系统请求结算某个拍卖）
func PublishSettleMsg(ctx context.Context, auctionID uint64) error {
	if RabbitMQChannel == nil {
		return ErrRabbitMQNotReady
	}
	msg, err := json.Marshal(map[string]string{"auction_id": strconv.FormatUint(auctionID, 10)})
	if err != nil {
		return err
	}
	return RabbitMQChannel.Publish(CommandExchange, SettleRouteKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    NewEventID(),
		Body:         msg,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

// ParseSettleMsg 解析结算命令
func ParseSettleMsg(body []byte) (uint64, error) {
	var msg map[string]string
	if err := json.Unmarshal(body, &msg); err != nil {
		return 0, err
	}
	raw, ok := msg["auction_id"]
	if !ok {
		return 0, errors.New("message missing auction_id")
	}
	return strconv.ParseUint(raw, 10, 64)
}

// ConsumeSettleMsg 消费结算命令；handler返回错误时重新入队
func ConsumeSettleMsg(handler func(auctionID uint64) error) error {
	if RabbitMQChannel == nil {
		return ErrRabbitMQNotReady
	}
	msgs, err := RabbitMQChannel.Consume(
		SettleQueue, // 队列名
		"",          // 消费者标签
		false,       // 自动确认
		false,       // 排他
		false,       // 不本地
		false,       // 等待
		nil,         // 参数
	)
	if err != nil {
		return err
	}

	// 启动协程消费消息
	go func() {
		for d := range msgs {
			auctionID, err := ParseSettleMsg(d.Body)
			if err != nil {
				Logger.Error("结算消息解析失败", zap.Error(err))
				d.Nack(false, false) // 拒绝消息，不重新入队
				continue
			}

			if err := handler(auctionID); err != nil {
				Logger.Error("处理结算消息失败", zap.Uint64("auction_id", auctionID), zap.Error(err))
				d.Nack(false, true) // 拒绝消息，重新入队
			} else {
				d.Ack(false) // 确认消息
			}
		}
	}()

	return nil
}

// CloseRabbitMQ 关闭RabbitMQ连接
func CloseRabbitMQ() {
	if RabbitMQChannel != nil {
		RabbitMQChannel.Close()
	}
	if RabbitMQConn != nil {
		RabbitMQConn.Close()
	}
}
