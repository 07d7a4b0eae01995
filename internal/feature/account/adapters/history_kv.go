package adapters

import (
	"context"

	"studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/account/usecase"
	"studio_backend/internal/platform/kv"
)

// historyKV は history スロットに全ユーザー共通の履歴を新しい順で保存します。
type historyKV struct {
	store kv.Store
}

var _ usecase.HistoryRepository = (*historyKV)(nil)

// NewHistoryKV は指定されたストアでhistoryKVの新しいインスタンスを生成します。
func NewHistoryKV(store kv.Store) *historyKV {
	return &historyKV{store: store}
}

// Prepend は entry を先頭に追加し、capacity を超えた分を末尾（最も古いもの）から削除します。
func (r *historyKV) Prepend(ctx context.Context, entry entity.HistoryEntry, capacity int) error {
	return kv.UpdateJSON(ctx, r.store, SlotHistory, func(list *[]entity.HistoryEntry) error {
		next := make([]entity.HistoryEntry, 0, len(*list)+1)
		next = append(next, entry)
		next = append(next, *list...)
		if capacity > 0 && len(next) > capacity {
			next = next[:capacity]
		}
		*list = next
		return nil
	})
}

func (r *historyKV) List(ctx context.Context) ([]entity.HistoryEntry, error) {
	return kv.ReadJSON[[]entity.HistoryEntry](ctx, r.store, SlotHistory)
}
