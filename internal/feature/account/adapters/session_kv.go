package adapters

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/account/usecase"
	"studio_backend/internal/platform/kv"
	"studio_backend/internal/platform/logger"
)

// DefaultSessionTTL はTTL未指定時のセッションの有効期間です。JWTの既定の有効期間と同じです。
const DefaultSessionTTL = 24 * time.Hour

// sessionKV はクライアントごとのセッションを session:<id> スロットに保存します。
// 値は {userId, expiresAt} で、ストアにも同じ有効期間を渡します。
type sessionKV struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

var _ usecase.SessionRepository = (*sessionKV)(nil)

// NewSessionKV は指定されたストアでsessionKVの新しいインスタンスを生成します。
// ttl が0以下の場合は DefaultSessionTTL を使用します。
func NewSessionKV(store kv.Store, ttl time.Duration) *sessionKV {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionKV{store: store, ttl: ttl, now: time.Now}
}

func (r *sessionKV) Set(ctx context.Context, sessionID, userID string) error {
	data, err := json.Marshal(entity.Session{UserID: userID, ExpiresAt: r.now().Add(r.ttl).UTC()})
	if err != nil {
		return err
	}
	return r.store.SetTTL(ctx, SessionSlot(sessionID), data, r.ttl)
}

// Get はセッションのユーザーIDを返します。期限切れや壊れたセッションは削除し、無いものとして扱います。
func (r *sessionKV) Get(ctx context.Context, sessionID string) (string, error) {
	raw, err := r.store.Get(ctx, SessionSlot(sessionID))
	if err != nil || raw == nil {
		return "", err
	}

	var s entity.Session
	if err := json.Unmarshal(raw, &s); err != nil || s.UserID == "" || s.IsExpired(r.now()) {
		if err := r.store.Delete(ctx, SessionSlot(sessionID)); err != nil {
			slog.Warn("failed to delete stale session", "error", err, "session_id", logger.ShortID(sessionID))
		}
		return "", nil
	}
	return s.UserID, nil
}

func (r *sessionKV) Delete(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, SessionSlot(sessionID))
}
