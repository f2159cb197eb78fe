package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/chanx"
)

// ScriptRoute 決定訊息交給腳本時的 KEYS 與前置 ARGV
// 訊息欄位會以 field, value 交錯的方式接在 args 後面
type ScriptRoute[T any] func(data T) (keys []string, args []any)

type producerOptions[T any] struct {
	logger     *slog.Logger
	bufferSize int
	maxLen     int64
	parseFunc  func(T) (map[string]any, error)
	script     *redis.Script
	route      ScriptRoute[T]
}

type ProducerOption[T any] func(*producerOptions[T])

// WithProducerLogger 設置日誌記錄器
func WithProducerLogger[T any](logger *slog.Logger) ProducerOption[T] {
	return func(o *producerOptions[T]) {
		o.logger = logger
	}
}

// WithProducerMaxLen 設置 stream 的約略長度上限，0 表示不限制
func WithProducerMaxLen[T any](n int64) ProducerOption[T] {
	return func(o *producerOptions[T]) {
		o.maxLen = n
	}
}

// WithProducerParseFunc 設置消息序列化函數
func WithProducerParseFunc[T any](fn func(T) (map[string]any, error)) ProducerOption[T] {
	return func(o *producerOptions[T]) {
		o.parseFunc = fn
	}
}

// WithProducerScript 以 Lua 腳本取代 XADD，腳本回傳 0 代表訊息被略過
func WithProducerScript[T any](script *redis.Script, route ScriptRoute[T]) ProducerOption[T] {
	return func(o *producerOptions[T]) {
		o.script = script
		o.route = route
	}
}

// envelope 是放進佇列的待發送訊息
type envelope struct {
	values map[string]any
	keys   []string
	args   []any
}

// Producer 非同步地將訊息寫入 Redis stream
// Publish 只會把訊息放進無上限的佇列，不會等待 Redis
type Producer[T any] struct {
	client     *redis.Client
	stream     string
	upstream   *chanx.UnboundedChan[envelope]
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	logger     *slog.Logger
	options    producerOptions[T]
}

func NewProducer[T any](client *redis.Client, stream string, opts ...ProducerOption[T]) (*Producer[T], error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if stream == "" {
		return nil, ErrEmptyStream
	}

	// 默認選項
	options := producerOptions[T]{
		logger:     slog.Default(),
		bufferSize: 100,
		parseFunc:  DefaultParseToMessage[T],
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Producer[T]{
		client:  client,
		stream:  stream,
		closed:  true,
		logger:  options.logger.With(slog.String("caller", "Producer"), slog.String("stream", stream)),
		options: options,
	}, nil
}

func (p *Producer[T]) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.upstream = chanx.NewUnboundedChan[envelope](ctx, p.options.bufferSize)
	p.cancelFunc = cancel
	p.closed = false
	p.logger.Info("starting stream producer")

	upstream := p.upstream
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.logger.Info("producer goroutine stopped")

		for {
			select {
			case <-ctx.Done():
				return
			case message, ok := <-upstream.Out:
				if !ok {
					return
				}
				if err := p.send(ctx, message); err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					p.logger.Error("publish message error", slog.Any("error", err))
				}
			}
		}
	}()
}

// send 將一則訊息寫入 stream
func (p *Producer[T]) send(ctx context.Context, message envelope) error {
	if p.options.script == nil {
		id, err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.options.maxLen,
			Approx: p.options.maxLen > 0,
			Values: message.values,
		}).Result()
		if err != nil {
			return err
		}
		p.logger.Debug("message published", slog.String("messageId", id))
		return nil
	}

	args := append(message.args, flattenValues(message.values)...)
	delivered, err := p.options.script.Run(ctx, p.client, message.keys, args...).Int()
	if err != nil {
		return err
	}
	if delivered == 0 {
		p.logger.Debug("message skipped by script", slog.Any("keys", message.keys))
		return nil
	}
	p.logger.Debug("message published by script", slog.Any("keys", message.keys))
	return nil
}

func (p *Producer[T]) Publish(data T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	values, err := p.options.parseFunc(data)
	if err != nil {
		return fmt.Errorf("parse message error: %w", err)
	}
	message := envelope{values: values}
	if p.options.route != nil {
		message.keys, message.args = p.options.route(data)
	}

	p.upstream.In <- message
	return nil
}

func (p *Producer[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.logger.Info("closing stream producer")
	p.closed = true
	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("stream producer closed")
}
