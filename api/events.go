package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gigflow/marketplace"
)

// Track notifications of the caller
// (GET /api/events)
func (impl *ServerImpl) Events(c *gin.Context) {
	const op = "Events"
	userID := currentUser(c)
	channel := marketplace.UserChannel(userID)
	ctx := c.Request.Context()
	logger := impl.logger.With(slog.String("op", op), slog.String("channel", channel))

	ch, err := impl.sseManager.Subscribe(channel)
	if err != nil {
		abortWithError(c, http.StatusServiceUnavailable, codeTransient, "Event stream unavailable")
		return
	}
	defer impl.sseManager.Unsubscribe(channel, ch)

	// 登記線上狀態，只有在線的使用者才會收到通知
	connID := impl.config.ID + ":" + uuid.NewString()
	if err := impl.presence.Join(ctx, channel, connID); err != nil {
		logger.Warn("Fail to register presence", slog.Any("error", err))
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := impl.presence.Leave(leaveCtx, channel, connID); err != nil {
			logger.Warn("Fail to remove presence", slog.Any("error", err))
		}
	}()

	// SSE請求合法，開始初始化串流
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.WriteHeaderNow()
	w.Flush()
	connections, err := impl.presence.Count(ctx, channel)
	if err != nil {
		logger.Warn("Fail to count presence", slog.Any("error", err))
	}
	logger.Debug("Event stream opened", slog.Int64("connections", connections))

	keepAlive := time.NewTicker(impl.config.SSE.KeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Event stream closed by client")
			return
		case notification, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(marketplace.HiredEvent, notification)
			w.Flush()
		// 沒有事件時送出註解行，確保瀏覽器和代理不會斷開連線，同時延長線上狀態
		case <-keepAlive.C:
			if err := impl.presence.Join(ctx, channel, connID); err != nil {
				logger.Warn("Fail to refresh presence", slog.Any("error", err))
			}
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}
