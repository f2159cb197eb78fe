package sse_test

import (
	"io"
	"log/slog"
	"sync"

	"gigflow/adapters/sse"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Message 表示一個 SSE 訊息，包含資料字段。
type Message struct {
	Data string `json:"data"`
}

// fakeSource 以記憶體通道模擬跨節點的訊息來源
type fakeSource struct {
	ch      chan sse.PublishRequest[Message]
	once    sync.Once
	started bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan sse.PublishRequest[Message], 8)}
}

func (s *fakeSource) Start() { s.started = true }

func (s *fakeSource) Subscribe() <-chan sse.PublishRequest[Message] { return s.ch }

func (s *fakeSource) Close() { s.once.Do(func() { close(s.ch) }) }
