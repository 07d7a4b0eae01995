// Package imagestore は生成画像の保存先を提供します。
package imagestore

import (
	"context"

	"studio_backend/internal/feature/generation/domain/entity"
	"studio_backend/internal/feature/generation/usecase"
)

// DataURLStore は画像を data URL としてそのまま履歴に埋め込みます。外部ストレージを持ちません。
type DataURLStore struct{}

var _ usecase.ImageStore = DataURLStore{}

// NewDataURLStore はDataURLStoreを返します。
func NewDataURLStore() DataURLStore { return DataURLStore{} }

func (DataURLStore) Save(_ context.Context, _ string, img *entity.Image) (string, error) {
	return img.DataURL(), nil
}

// Discard は何もしません。data URL は履歴に書かれなければ残りません。
func (DataURLStore) Discard(context.Context, string) error { return nil }
