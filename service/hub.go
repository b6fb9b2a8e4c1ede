package service

import (
	"sync"
	"time"

	"StoryToVideo-gateway/models"
)

const (
	// EventSnapshot 任务快照事件
	EventSnapshot = "snapshot"
	// EventPing 空闲保活事件，防止客户端空闲超时断开
	EventPing = "ping"

	// 订阅通道缓冲大小。写满即丢弃该条事件（见 Publish 注释）
	subscriptionBuffer = 16

	defaultKeepAlive = 15 * time.Second
)

// ProgressEvent 推送给订阅者的一条消息
type ProgressEvent struct {
	Kind string
	Task models.Task
}

// Subscription 一个任务的一路进度订阅
type Subscription struct {
	TaskID string
	C      chan ProgressEvent

	lastSent time.Time // 由 hub.mu 保护
}

// ProgressHub 按任务 id 把状态变更事件扇出给零个或多个在线订阅者。
// 迟到的订阅者在订阅时立刻补发当前快照；空闲超过保活间隔时由 hub
// 统一发送 ping（保活是 hub 的职责，编排器不感知）。
type ProgressHub struct {
	mu        sync.Mutex
	subs      map[string][]*Subscription
	keepAlive time.Duration
	stop      chan struct{}
}

func NewProgressHub(keepAlive time.Duration) *ProgressHub {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &ProgressHub{
		subs:      make(map[string][]*Subscription),
		keepAlive: keepAlive,
		stop:      make(chan struct{}),
	}
}

// Start 启动保活循环
func (h *ProgressHub) Start() {
	go h.keepAliveLoop()
}

func (h *ProgressHub) Stop() {
	close(h.stop)
}

// Subscribe 注册一路订阅。replay 非 nil 时先补发当前快照，
// 保证迟到订阅者不会错过"当前"状态。
func (h *ProgressHub) Subscribe(taskID string, replay *models.Task) *Subscription {
	sub := &Subscription{
		TaskID: taskID,
		C:      make(chan ProgressEvent, subscriptionBuffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[taskID] = append(h.subs[taskID], sub)
	if replay != nil {
		h.send(sub, ProgressEvent{Kind: EventSnapshot, Task: *replay})
	}
	return sub
}

// Unsubscribe 注销并关闭通道。所有发送都持有 h.mu，关闭是安全的。
func (h *ProgressHub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[sub.TaskID]
	for i, s := range list {
		if s == sub {
			h.subs[sub.TaskID] = append(list[:i], list[i+1:]...)
			close(sub.C)
			break
		}
	}
	if len(h.subs[sub.TaskID]) == 0 {
		delete(h.subs, sub.TaskID)
	}
}

// Publish 把快照投递给该任务的所有在线订阅。投递是尽力而为且绝不阻塞：
// 缓冲写满（订阅者太慢或已被弃置）时直接丢弃这一条，慢订阅者永远
// 不能拖住发布方。快照序列对单个订阅保持产生顺序。
func (h *ProgressHub) Publish(taskID string, snap models.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[taskID] {
		h.send(sub, ProgressEvent{Kind: EventSnapshot, Task: snap})
	}
}

// send 非阻塞投递，调用方必须持有 h.mu
func (h *ProgressHub) send(sub *Subscription, ev ProgressEvent) {
	select {
	case sub.C <- ev:
		sub.lastSent = time.Now()
	default:
		// 丢弃：订阅者之后仍会收到更新的快照或 ping
	}
}

func (h *ProgressHub) keepAliveLoop() {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			h.mu.Lock()
			for _, list := range h.subs {
				for _, sub := range list {
					if now.Sub(sub.lastSent) >= h.keepAlive {
						h.send(sub, ProgressEvent{Kind: EventPing})
					}
				}
			}
			h.mu.Unlock()
		}
	}
}
