package redis

import (
	"context"
	"errors"
)

var (
	ErrProducerClosed = errors.New("producer is closed")
	ErrNilClient      = errors.New("redis client cannot be nil")
	ErrEmptyStream    = errors.New("stream cannot be empty")
)

// IProducer 定義了 Producer 的操作介面
type IProducer[T any] interface {
	Start()
	Publish(data T) error
	Close()
}

// IConsumer 定義了 Consumer 的操作介面
type IConsumer[T any] interface {
	Start()
	Subscribe() <-chan T
	Close()
}

// IPresence 定義了線上狀態追蹤的操作介面
type IPresence interface {
	// Join 登記一個連線，Refresh 也是使用相同的方法延長有效時間
	Join(ctx context.Context, channel, member string) error
	// Leave 移除一個連線
	Leave(ctx context.Context, channel, member string) error
	// Count 清除過期的連線後回傳目前的連線數
	Count(ctx context.Context, channel string) (int64, error)
	// Key 回傳頻道對應的 Redis 鍵
	Key(channel string) string
}
