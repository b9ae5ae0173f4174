package notify

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type subscriber struct {
	conn       *websocket.Conn
	scenarioID uint64
	send       chan Event
}

// Hub websocket订阅者集合，可按scenarioId过滤，写满的订阅者直接丢弃事件
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// ServeWS 升级连接并注册订阅者，?scenarioId=<id>只接收该场景的事件
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var scenarioID uint64
	if raw := r.URL.Query().Get("scenarioId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid scenarioId", http.StatusBadRequest)
			return
		}
		scenarioID = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := &subscriber{conn: conn, scenarioID: scenarioID, send: make(chan Event, sendBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", zap.Uint64("scenario_id", scenarioID))

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.scenarioID != 0 && sub.scenarioID != ev.ScenarioID {
			continue
		}
		select {
		case sub.send <- ev:
		default:
			h.logger.Warn("subscriber too slow, dropping event", zap.String("type", string(ev.Type)))
		}
	}
	return nil
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close 断开所有订阅者
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for sub := range subs {
		close(sub.send)
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for ev := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteJSON(ev); err != nil {
			h.remove(sub)
			return
		}
	}
}

// readLoop 只用于发现连接关闭
func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)
	for {
		if _, _, err := sub.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
		close(sub.send)
	}
	h.mu.Unlock()
	if ok {
		h.logger.Debug("subscriber disconnected", zap.Uint64("scenario_id", sub.scenarioID))
	}
}
