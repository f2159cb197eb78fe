package sse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gigflow/adapters/sse"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("did not receive message in time")
	}
	return Message{}
}

func TestConnectionManager_Routing(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	cm := sse.NewConnectionManager[Message](
		sse.WithLogger[Message](discardLogger),
		sse.WithSource[Message](source),
	)
	cm.Start()
	defer cm.Done()

	// 測試訂閱
	ch, err := cm.Subscribe("test_channel")
	require.NoError(t, err)
	other, err := cm.Subscribe("other_channel")
	require.NoError(t, err)

	// 沒有訂閱者的頻道直接忽略
	source.ch <- sse.PublishRequest[Message]{Channel: "nobody", Message: Message{Data: "ignored"}}

	// 測試訊息只會送到對應的頻道
	msg := Message{Data: "test message"}
	source.ch <- sse.PublishRequest[Message]{Channel: "test_channel", Message: msg}
	assert.Equal(t, msg, receive(t, ch))

	select {
	case <-other:
		t.Fatal("message leaked to another channel")
	case <-time.After(50 * time.Millisecond):
	}

	// 測試取消訂閱
	cm.Unsubscribe("test_channel", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestConnectionManager_WithoutSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	cm := sse.NewConnectionManager[Message](sse.WithLogger[Message](discardLogger))
	cm.Start()
	ch, err := cm.Subscribe("user_1")
	require.NoError(t, err)
	cm.Done()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestConnectionManager_FanOutAndDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	cm := sse.NewConnectionManager[Message](
		sse.WithLogger[Message](discardLogger),
		sse.WithSource[Message](source),
		sse.WithBufferSize[Message](4),
	)
	cm.Start()
	assert.True(t, source.started)

	a, err := cm.Subscribe("user_1")
	require.NoError(t, err)
	b, err := cm.Subscribe("user_1")
	require.NoError(t, err)

	// 其他節點發布的訊息會送給本節點所有訂閱者
	source.ch <- sse.PublishRequest[Message]{Channel: "user_1", Message: Message{Data: "remote"}}
	assert.Equal(t, "remote", receive(t, a).Data)
	assert.Equal(t, "remote", receive(t, b).Data)

	cm.Done()
	cm.Done() // no-op

	_, ok := <-a
	assert.False(t, ok)
	_, err = cm.Subscribe("user_1")
	assert.ErrorIs(t, err, sse.ErrManagerClosed)
}
