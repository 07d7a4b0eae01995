package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter は、外部API呼び出しなどの操作の頻度を制限するインターフェースです。
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter は interval あたり limit 回までの呼び出しを許可します。
// 複数の goroutine から同時に呼び出せます。
type RateLimiter struct {
	limiter *rate.Limiter
	limit   int
}

var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiter は新しいRateLimiterのインスタンスを生成します。
// limit <= 0 の場合は無制限になります。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	every := interval / time.Duration(limit)
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(every), limit),
		limit:   limit,
	}
}

// Wait は枠が空くまで待機します。ctx が先に終了した場合はエラーを返します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.limiter.Allow() {
		slog.Debug("rate limit reached; waiting", "limit", rl.limit)
		if err := rl.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return nil
}
