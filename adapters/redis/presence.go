package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type presenceOptions struct {
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type PresenceOption func(*presenceOptions)

// WithPresencePrefix 設定 key 前綴
func WithPresencePrefix(prefix string) PresenceOption {
	return func(o *presenceOptions) {
		o.prefix = prefix
	}
}

// WithPresenceTTL 設定連線沒有更新時的有效時間
func WithPresenceTTL(ttl time.Duration) PresenceOption {
	return func(o *presenceOptions) {
		o.ttl = ttl
	}
}

// Presence 以 sorted set 記錄每個頻道目前的連線
// member 是連線 ID，score 是到期時間 (毫秒)
type Presence struct {
	client  *redis.Client
	options presenceOptions
}

func NewPresence(client *redis.Client, opts ...PresenceOption) (*Presence, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	options := presenceOptions{
		prefix: "presence:",
		ttl:    time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Presence{client: client, options: options}, nil
}

func (p *Presence) Key(channel string) string {
	return p.options.prefix + channel
}

// TTL 回傳連線的有效時間，呼叫端應該在過期前呼叫 Join 更新
func (p *Presence) TTL() time.Duration {
	return p.options.ttl
}

func (p *Presence) Join(ctx context.Context, channel, member string) error {
	const op = "Presence.Join"
	key := p.Key(channel)
	expireAt := p.options.now().Add(p.options.ttl)

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(expireAt.UnixMilli()), Member: member})
		// 整個集合在最後一個連線過期後也會一起消失
		pipe.PExpire(ctx, key, p.options.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to register member, err=%w", op, err)
	}
	return nil
}

func (p *Presence) Leave(ctx context.Context, channel, member string) error {
	const op = "Presence.Leave"
	if err := p.client.ZRem(ctx, p.Key(channel), member).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to remove member, err=%w", op, err)
	}
	return nil
}

func (p *Presence) Count(ctx context.Context, channel string) (int64, error) {
	const op = "Presence.Count"
	key := p.Key(channel)
	now := strconv.FormatInt(p.options.now().UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", now)
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("[%s] Fail to count members, err=%w", op, err)
	}
	return card.Val(), nil
}
