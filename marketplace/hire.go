package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gigflow/models"
)

// RetryPolicy 控制雇用流程遇到暫時性衝突時的重試方式
type RetryPolicy struct {
	// 最多嘗試次數，包含第一次
	MaxAttempts int
	// 第 n 次重試前等待 BaseDelay × n
	BaseDelay time.Duration
	// 單次嘗試的時間上限
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy 回傳預設的重試設定
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	return p
}

// Backoff 回傳第 attempt 次嘗試失敗後要等待的時間
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

type HireRequest struct {
	BidID   uuid.UUID
	ActorID uuid.UUID
}

type HireResult struct {
	// 雇用後的投標，Gig 已預先載入
	Bid models.Bid
	// 實際使用的嘗試次數
	Attempts int
}

type hirerOptions struct {
	logger *slog.Logger
	policy RetryPolicy
}

type HirerOption func(*hirerOptions)

// WithHirerLogger 設置日誌記錄器
func WithHirerLogger(logger *slog.Logger) HirerOption {
	return func(o *hirerOptions) {
		o.logger = logger
	}
}

// WithRetryPolicy 設置重試策略
func WithRetryPolicy(policy RetryPolicy) HirerOption {
	return func(o *hirerOptions) {
		o.policy = policy
	}
}

// Hirer 負責將案件從 open 轉成 assigned，並同時確定所有投標的結果
// 互斥完全依靠儲存層的條件式寫入，不使用任何應用層的鎖
type Hirer struct {
	store  Store
	logger *slog.Logger
	policy RetryPolicy
}

func NewHirer(store Store, opts ...HirerOption) *Hirer {
	o := hirerOptions{
		logger: slog.Default(),
		policy: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Hirer{
		store:  store,
		logger: o.logger.With(slog.String("caller", "Hirer")),
		policy: o.policy.normalize(),
	}
}

// Hire 雇用指定的投標
//
// 回傳的錯誤:
//   - ErrNotFound: 投標或案件不存在
//   - ErrForbidden: 操作者不是發案者
//   - ErrConflict: 案件已被指派，不會重試
//   - ErrTransient: 暫時性衝突重試次數耗盡
//   - ErrInconsistentState: 交易內資料不符，已回滾
//   - context 錯誤: 呼叫端取消
func (h *Hirer) Hire(ctx context.Context, req HireRequest) (HireResult, error) {
	const op = "Hirer.Hire"
	logger := h.logger.With(slog.String("bidID", req.BidID.String()))

	var lastErr error
	for attempt := 1; attempt <= h.policy.MaxAttempts; attempt++ {
		logger.Debug("hire attempt", slog.Int("attempt", attempt))
		bid, err := h.attempt(ctx, req)
		if err == nil {
			logger.Info("bid hired",
				slog.String("gigID", bid.GigID.String()),
				slog.Int("attempts", attempt),
			)
			return HireResult{Bid: bid, Attempts: attempt}, nil
		}

		// 呼叫端已經放棄，直接回傳 context 錯誤
		if ctxErr := ctx.Err(); ctxErr != nil {
			return HireResult{Attempts: attempt}, fmt.Errorf("[%s] %w", op, ctxErr)
		}
		if !h.retryable(err) {
			return HireResult{Attempts: attempt}, fmt.Errorf("[%s] %w", op, err)
		}

		lastErr = err
		if attempt == h.policy.MaxAttempts {
			break
		}
		delay := h.policy.Backoff(attempt)
		logger.Warn("transient conflict, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("err", err),
		)
		if err := sleep(ctx, delay); err != nil {
			return HireResult{Attempts: attempt}, fmt.Errorf("[%s] %w", op, err)
		}
	}

	logger.Warn("hire retries exhausted",
		slog.Int("attempts", h.policy.MaxAttempts),
		slog.Any("err", lastErr),
	)
	return HireResult{Attempts: h.policy.MaxAttempts}, fmt.Errorf("[%s] %w, last=%w", op, ErrTransient, lastErr)
}

// retryable 只有儲存層的暫時性衝突與單次嘗試逾時可以重試
func (h *Hirer) retryable(err error) bool {
	return errors.Is(err, ErrStorageConflict) || errors.Is(err, context.DeadlineExceeded)
}

// attempt 執行一次完整的雇用流程，時間受 AttemptTimeout 限制
func (h *Hirer) attempt(ctx context.Context, req HireRequest) (models.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, h.policy.AttemptTimeout)
	defer cancel()

	bid, err := h.store.FindBid(ctx, req.BidID)
	if err != nil {
		return models.Bid{}, err
	}
	gig := bid.Gig
	if gig == nil {
		found, err := h.store.FindGig(ctx, bid.GigID)
		if err != nil {
			return models.Bid{}, err
		}
		gig = &found
	}
	if gig.OwnerID != req.ActorID {
		return models.Bid{}, ErrForbidden
	}

	won, err := h.store.CommitHire(ctx, gig.ID, bid.ID)
	if err != nil {
		return models.Bid{}, err
	}
	if !won {
		return models.Bid{}, ErrConflict
	}

	// 交易已經提交，之後的錯誤都不能再觸發重試
	hired, err := h.store.FindBid(ctx, bid.ID)
	if err != nil {
		h.logger.Warn("Fail to reload hired bid, using committed values",
			slog.String("bidID", bid.ID.String()),
			slog.Any("err", err),
		)
		hired = bid
		hired.Status = models.BidHired
		assigned := *gig
		assigned.Status = models.GigAssigned
		assigned.HiredBidID = &hired.ID
		hired.Gig = &assigned
	}
	return hired, nil
}

// sleep 等待指定時間，期間 context 被取消時提前返回
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
