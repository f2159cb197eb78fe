package api

import (
	"context"
	"fmt"

	redisAdapter "gigflow/adapters/redis"
	"gigflow/marketplace"
)

// streamNotifier 將雇用通知放進 producer 的佇列，實際寫入由 producer 在背景完成
// 得標者是否在線由 HiredNotifyScript 在 Redis 端判斷
type streamNotifier struct {
	producer redisAdapter.IProducer[HireEvent]
}

func (n *streamNotifier) NotifyHired(ctx context.Context, notification marketplace.HireNotification) error {
	const op = "NotifyHired"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	if err := n.producer.Publish(HireEvent{
		Channel: notification.Channel,
		Message: notification,
	}); err != nil {
		return fmt.Errorf("[%s] Fail to enqueue notification, err=%w", op, err)
	}
	return nil
}
