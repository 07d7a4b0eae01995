package adapters

import (
	"context"

	"studio_backend/internal/feature/account/domain"
	"studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/account/usecase"
	"studio_backend/internal/platform/kv"
)

// userTable は users スロットの内容（メールアドレス → レコード）です。
type userTable map[string]entity.UserRecord

// userKV はUserRepositoryインターフェースの kv.Store 実装です。
type userKV struct {
	store kv.Store
}

// userKVがUserRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.UserRepository = (*userKV)(nil)

// NewUserKV は指定されたストアでuserKVの新しいインスタンスを生成します。
func NewUserKV(store kv.Store) *userKV {
	return &userKV{store: store}
}

// Create はユーザーを追加します。
// 同じメールアドレスのユーザーが既に存在する場合、domain.ErrDuplicateUserを返し、既存レコードは変更しません。
func (r *userKV) Create(ctx context.Context, rec entity.UserRecord) error {
	return kv.UpdateJSON(ctx, r.store, SlotUsers, func(t *userTable) error {
		if *t == nil {
			*t = userTable{}
		}
		if _, exists := (*t)[rec.Email]; exists {
			return domain.ErrDuplicateUser
		}
		(*t)[rec.Email] = rec
		return nil
	})
}

func (r *userKV) load(ctx context.Context) (userTable, error) {
	return kv.ReadJSON[userTable](ctx, r.store, SlotUsers)
}

// FindByEmail はメールアドレスでユーザーを取得します。
func (r *userKV) FindByEmail(ctx context.Context, email string) (*entity.UserRecord, error) {
	t, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := t[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &rec, nil
}

// FindByID はIDでユーザーを取得します。
func (r *userKV) FindByID(ctx context.Context, id string) (*entity.UserRecord, error) {
	t, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range t {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// List は全ユーザーを返します。順序は不定です。
func (r *userKV) List(ctx context.Context) ([]entity.UserRecord, error) {
	t, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entity.UserRecord, 0, len(t))
	for _, rec := range t {
		out = append(out, rec)
	}
	return out, nil
}

// UpdateCredits は users スロットの Update 内で残高を書き換えます。
func (r *userKV) UpdateCredits(ctx context.Context, id string, fn func(current int) (int, error)) (*entity.User, error) {
	var updated entity.User
	err := kv.UpdateJSON(ctx, r.store, SlotUsers, func(t *userTable) error {
		for email, rec := range *t {
			if rec.ID != id {
				continue
			}
			next, err := fn(rec.Credits)
			if err != nil {
				return err
			}
			rec.Credits = next
			(*t)[email] = rec
			updated = rec.Public()
			return nil
		}
		return domain.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
