package sse

import (
	"errors"
	"log/slog"
	"sync"
)

var ErrManagerClosed = errors.New("connection manager is closed")

type options[T any] struct {
	logger     *slog.Logger
	bufferSize int
	source     ISource[T]
}

type Option[T any] func(*options[T])

// WithLogger 設置日誌記錄器
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = logger
	}
}

// WithBufferSize 設置每個訂閱者的緩衝大小
func WithBufferSize[T any](size int) Option[T] {
	return func(o *options[T]) {
		o.bufferSize = size
	}
}

// WithSource 設置跨節點訊息的來源，收到的訊息會廣播給本節點的訂閱者
func WithSource[T any](source ISource[T]) Option[T] {
	return func(o *options[T]) {
		o.source = source
	}
}

// connectionManager 管理多個 SSE 頻道的訂閱與發布。
// 透過 Redis Stream 實現跨節點的訊息廣播，讓多個服務實例能夠協同運作。
type connectionManager[T any] struct {
	logger  *slog.Logger
	options options[T]

	mu      sync.RWMutex   // 保護 active、started 和 channels 的讀寫
	wg      sync.WaitGroup // 用於等待所有 goroutine 完成
	active  bool           // 標記 manager 是否正在運作中
	started bool

	channels map[string]IChannel[T] // 儲存所有活躍的頻道
}

// NewConnectionManager 建立一個新的連線管理器。
func NewConnectionManager[T any](opts ...Option[T]) IConnectionManager[T] {
	o := options[T]{
		logger:     slog.Default(),
		bufferSize: 16,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &connectionManager[T]{
		logger:   o.logger.With(slog.String("caller", "ConnectionManager")),
		options:  o,
		channels: make(map[string]IChannel[T]),
		active:   true,
	}
}

// Start 啟動連線管理器，開始處理訊息的接收與廣播。
func (cm *connectionManager[T]) Start() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if !cm.active || cm.started {
		return
	}
	cm.started = true

	source := cm.options.source
	if source == nil {
		return
	}
	source.Start()

	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		defer cm.logger.Info("source goroutine stopped")
		for msg := range source.Subscribe() {
			cm.broadcast(msg.Channel, msg.Message)
		}
	}()
}

// broadcast 將訊息交給本節點的頻道
func (cm *connectionManager[T]) broadcast(channelName string, message T) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	channel, ok := cm.channels[channelName]
	if !ok {
		return
	}
	if dropped := channel.Broadcast(message); dropped > 0 {
		cm.logger.Warn("subscriber buffer full, message dropped",
			slog.String("channel", channelName),
			slog.Int("dropped", dropped))
	}
}

// Done 停止連線管理器的運作。
func (cm *connectionManager[T]) Done() {
	cm.mu.Lock()
	if !cm.active {
		cm.mu.Unlock()
		return
	}
	cm.active = false
	started := cm.started
	cm.mu.Unlock()

	// 廣播的 goroutine 需要讀鎖，因此必須在釋放鎖之後才等待它結束
	if started && cm.options.source != nil {
		cm.options.source.Close()
	}
	cm.wg.Wait()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定的頻道。
func (cm *connectionManager[T]) Subscribe(channelName string) (<-chan T, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, ErrManagerClosed
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel[T](cm.options.bufferSize)
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Unsubscribe 取消訂閱指定的頻道。
func (cm *connectionManager[T]) Unsubscribe(channelName string, ch <-chan T) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}
	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}

