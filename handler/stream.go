package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nft_auction/model"
	"nft_auction/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamBuffer     = 32
	streamPingPeriod = 30 * time.Second
	streamReadWait   = 60 * time.Second
	streamWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type subscriber struct {
	ch chan []byte
}

// StreamHub 按拍卖分发引擎通知的websocket广播器，实现service.Notifier
type StreamHub struct {
	mu     sync.RWMutex
	subs   map[uint64]map[*subscriber]struct{}
	closed bool
}

// NewStreamHub 创建广播器
func NewStreamHub() *StreamHub {
	return &StreamHub{subs: make(map[uint64]map[*subscriber]struct{})}
}

// Notify 投递给订阅该拍卖的连接；慢连接直接丢弃消息，不阻塞引擎
func (h *StreamHub) Notify(ctx context.Context, ev model.Event) error {
	if ev.AuctionID == 0 {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.AuctionID] {
		select {
		case sub.ch <- data:
		default:
			utils.Logger.Warn("订阅者消费过慢，丢弃通知", zap.Uint64("auction_id", ev.AuctionID), zap.String("event_id", ev.ID))
		}
	}
	return nil
}

// Subscribe 订阅拍卖通知，返回消息通道与取消函数
func (h *StreamHub) Subscribe(auctionID uint64) (<-chan []byte, func()) {
	sub := &subscriber{ch: make(chan []byte, streamBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	m, exists := h.subs[auctionID]
	if !exists {
		m = make(map[*subscriber]struct{})
		h.subs[auctionID] = m
	}
	m[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, still := h.subs[auctionID][sub]; !still {
				return
			}
			delete(h.subs[auctionID], sub)
			if len(h.subs[auctionID]) == 0 {
				delete(h.subs, auctionID)
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Close 关闭所有订阅
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, m := range h.subs {
		for sub := range m {
			close(sub.ch)
		}
		delete(h.subs, id)
	}
}

// ServeWS 升级为websocket并推送该拍卖的通知，直到任一方断开
func (h *StreamHub) ServeWS(w http.ResponseWriter, r *http.Request, auctionID uint64) {
	// 先订阅再升级，握手完成后不会漏掉通知
	events, cancel := h.Subscribe(auctionID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Logger.Warn("websocket升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadWait))
	})

	done := make(chan struct{})
	go func() {
		defer func() {
			conn.Close()
			close(done)
		}()
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case data, open := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if !open {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// 只读控制帧，客户端断开时退出
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	<-done
}
